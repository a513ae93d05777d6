package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jrsteele09/go-sso-connect/connections"
	"github.com/jrsteele09/go-sso-connect/token"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// ConnectionView is the API representation of a connection.
type ConnectionView struct {
	ID        string    `json:"id"`
	PathID    string    `json:"pathId"`
	Label     string    `json:"label"`
	Kind      string    `json:"kind"`
	Region    string    `json:"region,omitempty"`
	StartURL  string    `json:"startUrl,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	State     string    `json:"state,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// PathID encodes a connection id for use as a single URL path segment.
// Identity keys embed start URLs, so they cannot appear in paths as-is.
func PathID(connectionID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(connectionID))
}

func connectionIDFromPath(r *http.Request) string {
	raw, err := base64.RawURLEncoding.DecodeString(r.PathValue("id"))
	if err != nil {
		return ""
	}
	return string(raw)
}

type pinRequest struct {
	ConnectionID string `json:"connectionId"`
}

func (s *Server) ListConnectionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := s.deps.Connections.List()
		if err != nil {
			log.Err(err).Msg("failed to list connections")
			writeJSONError(w, "server_error", "failed to list connections", http.StatusInternalServerError)
			return
		}
		s.deps.Metrics.SetConnections(len(records))

		activeID := ""
		if active := s.deps.Sessions.ActiveConnection(); active != nil {
			activeID = active.ID
		}
		views := make([]ConnectionView, 0, len(records))
		for _, rec := range records {
			views = append(views, s.view(r, rec, activeID))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func (s *Server) GetConnectionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := s.lookup(w, connectionIDFromPath(r))
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, s.view(r, rec, s.activeID()))
	}
}

func (s *Server) ActiveConnectionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := s.deps.Sessions.ActiveConnection()
		if rec == nil {
			writeJSONError(w, "not_found", "no active connection", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, s.view(r, rec, rec.ID))
	}
}

func (s *Server) FeatureConnectionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := s.deps.Sessions.ActiveConnectionForFeature(r.PathValue("feature"))
		if rec == nil {
			writeJSONError(w, "not_found", "no connection for feature", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, s.view(r, rec, s.activeID()))
	}
}

func (s *Server) PinFeatureHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConnectionID == "" {
			writeJSONError(w, "invalid_request", "connectionId is required", http.StatusBadRequest)
			return
		}
		rec, ok := s.lookup(w, req.ConnectionID)
		if !ok {
			return
		}
		if err := s.deps.Sessions.PinFeature(r.PathValue("feature"), rec); err != nil {
			writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) UnpinFeatureHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.deps.Sessions.PinFeature(r.PathValue("feature"), nil); err != nil {
			writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ActivateConnectionHandler switches to a connection whose token is already
// valid or silently refreshable. Interactive logins go through the CLI.
func (s *Server) ActivateConnectionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := s.lookup(w, connectionIDFromPath(r))
		if !ok {
			return
		}
		if _, isBearer := rec.BearerToken(); isBearer {
			if !s.ensureValid(w, r, rec) {
				return
			}
		}
		if err := s.deps.Sessions.SwitchConnection(rec); err != nil {
			writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, s.view(r, rec, rec.ID))
	}
}

func (s *Server) RefreshConnectionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := s.lookup(w, connectionIDFromPath(r))
		if !ok {
			return
		}
		provider, err := s.deps.Providers.ForConnection(rec)
		if err != nil {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}
		if _, err := provider.ResolveToken(r.Context()); err != nil {
			s.writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.view(r, rec, s.activeID()))
	}
}

func (s *Server) DeleteConnectionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := connectionIDFromPath(r)
		if id == "" {
			writeJSONError(w, "invalid_request", "malformed connection id", http.StatusBadRequest)
			return
		}
		if err := s.deps.Connections.Delete(id); err != nil {
			log.Err(err).Str("connection_id", id).Msg("failed to delete connection")
			writeJSONError(w, "server_error", "failed to delete connection", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ensureValid(w http.ResponseWriter, r *http.Request, rec *connections.Record) bool {
	provider, err := s.deps.Providers.ForConnection(rec)
	if err != nil {
		writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
		return false
	}
	switch provider.State(r.Context()) {
	case token.StateValid:
		return true
	case token.StateNeedsRefresh:
		if _, err := provider.ResolveToken(r.Context()); err != nil {
			s.writeAuthError(w, err)
			return false
		}
		return true
	default:
		writeJSONError(w, "login_required", "connection needs an interactive login", http.StatusConflict)
		return false
	}
}

func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, token.ErrTokenRefresh), errors.Is(err, token.ErrNotAuthenticated):
		writeJSONError(w, "login_required", token.UserMessage(err), http.StatusConflict)
	case errors.Is(err, token.ErrAuthCancelled):
		writeJSONError(w, "cancelled", "request cancelled", http.StatusRequestTimeout)
	default:
		log.Err(err).Msg("token operation failed")
		writeJSONError(w, "server_error", token.UserMessage(err), http.StatusBadGateway)
	}
}

func (s *Server) lookup(w http.ResponseWriter, id string) (*connections.Record, bool) {
	rec, err := s.deps.Connections.Get(id)
	if errors.Is(err, connections.ErrConnectionNotFound) {
		writeJSONError(w, "not_found", "connection not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		log.Err(err).Str("connection_id", id).Msg("failed to load connection")
		writeJSONError(w, "server_error", "failed to load connection", http.StatusInternalServerError)
		return nil, false
	}
	return rec, true
}

func (s *Server) activeID() string {
	if active := s.deps.Sessions.ActiveConnection(); active != nil {
		return active.ID
	}
	return ""
}

func (s *Server) view(r *http.Request, rec *connections.Record, activeID string) ConnectionView {
	v := ConnectionView{
		ID:        rec.ID,
		PathID:    PathID(rec.ID),
		Label:     rec.Label,
		Kind:      string(rec.Kind),
		Active:    rec.ID == activeID,
		CreatedAt: rec.CreatedAt,
	}
	if settings, ok := rec.BearerToken(); ok {
		v.Region = settings.Region
		v.StartURL = settings.StartURL
		v.Scopes = settings.Scopes
		if provider, err := s.deps.Providers.ForConnection(rec); err == nil {
			state := provider.State(r.Context())
			v.State = state.String()
			if state == token.StateValid {
				if tok, err := provider.Token(r.Context()); err == nil {
					v.ExpiresAt = tok.ExpiresAt
				}
			}
		}
	} else if rec.Credential != nil {
		v.Region = rec.Credential.Region
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
