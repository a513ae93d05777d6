package login

// Waiters returns how many callers are waiting on the login for key.
func (s *Service) Waiters(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if att, ok := s.attempts[key]; ok {
		return att.waiters
	}
	return 0
}
