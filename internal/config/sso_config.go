package config

import (
	"os"
	"time"

	"github.com/jrsteele09/go-sso-connect/internal/utils"
)

const (
	regionVar      = "SSOCONN_REGION"
	scopesVar      = "SSOCONN_SCOPES"
	clientNameVar  = "SSOCONN_CLIENT_NAME"
	refreshLeadVar = "SSOCONN_REFRESH_LEAD"

	DefaultRegion      = "us-east-1"
	DefaultClientName  = "go-sso-connect"
	DefaultRefreshLead = 5 * time.Minute
)

// DefaultScopes is requested when neither the caller nor the configuration names any scope.
var DefaultScopes = []string{"sso:account:access"}

type SSO struct {
	file *File
}

var _ SSOConfig = SSO{}

func (s SSO) GetDefaultRegion() string {
	if v := os.Getenv(regionVar); v != "" {
		return v
	}
	if s.file != nil && s.file.Region != "" {
		return s.file.Region
	}
	return DefaultRegion
}

func (s SSO) GetDefaultScopes() []string {
	if v := utils.SplitList(os.Getenv(scopesVar)); len(v) > 0 {
		return v
	}
	if s.file != nil && len(s.file.Scopes) > 0 {
		return append([]string(nil), s.file.Scopes...)
	}
	return append([]string(nil), DefaultScopes...)
}

func (s SSO) GetClientName() string {
	if v := os.Getenv(clientNameVar); v != "" {
		return v
	}
	if s.file != nil && s.file.ClientName != "" {
		return s.file.ClientName
	}
	return DefaultClientName
}

// GetRefreshLead is how long before expiry a token is treated as needing refresh.
func (s SSO) GetRefreshLead() time.Duration {
	if v := os.Getenv(refreshLeadVar); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	if s.file != nil && s.file.RefreshLead != "" {
		if d, err := time.ParseDuration(s.file.RefreshLead); err == nil && d >= 0 {
			return d
		}
	}
	return DefaultRefreshLead
}

// GetFeaturePins maps feature names to the connection id pinned for them.
func (s SSO) GetFeaturePins() map[string]string {
	pins := make(map[string]string)
	if s.file == nil {
		return pins
	}
	for feature, id := range s.file.Features {
		pins[feature] = id
	}
	return pins
}
