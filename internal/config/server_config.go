package config

const addrVar = "SSOCONN_ADDR"

type Server struct{}

var _ ServerConfig = Server{}

// GetAddr returns the listen address of the status server. Loopback by default.
func (Server) GetAddr() string {
	return GetEnv(addrVar, "127.0.0.1:8731")
}
