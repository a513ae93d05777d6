package connections

import (
	"fmt"
	"strings"
	"time"

	ierrors "github.com/jrsteele09/go-sso-connect/internal/errors"
	"github.com/jrsteele09/go-sso-connect/internal/utils"
)

// Kind distinguishes the connection variants.
type Kind string

const (
	// KindCredential is a static credential profile (no bearer token lifecycle).
	KindCredential Kind = "credential"
	// KindBearerToken is an SSO connection authenticated with a refreshable bearer token.
	KindBearerToken Kind = "bearer_token"
)

// SSOSettings describes the identity behind a bearer-token connection.
type SSOSettings struct {
	Region   string   `yaml:"region" json:"region"`
	StartURL string   `yaml:"start_url" json:"startUrl"`
	Scopes   []string `yaml:"scopes" json:"scopes"`

	// IssuerURL selects a generic OIDC issuer instead of AWS SSO-OIDC.
	IssuerURL string `yaml:"issuer_url,omitempty" json:"issuerUrl,omitempty"`
	// ClientID is the pre-registered client used with IssuerURL.
	ClientID string `yaml:"client_id,omitempty" json:"clientId,omitempty"`
}

// CredentialSettings describes a static credential profile connection.
type CredentialSettings struct {
	ProfileName string `yaml:"profile_name" json:"profileName"`
	Region      string `yaml:"region,omitempty" json:"region,omitempty"`
}

// Record is a registered connection. Exactly one of SSO or Credential is set,
// matching Kind.
type Record struct {
	ID         string              `yaml:"id" json:"id"`
	Label      string              `yaml:"label" json:"label"`
	Kind       Kind                `yaml:"kind" json:"kind"`
	SSO        *SSOSettings        `yaml:"sso,omitempty" json:"sso,omitempty"`
	Credential *CredentialSettings `yaml:"credential,omitempty" json:"credential,omitempty"`
	CreatedAt  time.Time           `yaml:"created_at" json:"createdAt"`
}

// BearerToken returns the SSO settings when the record is a bearer-token connection.
func (r *Record) BearerToken() (*SSOSettings, bool) {
	if r == nil || r.Kind != KindBearerToken || r.SSO == nil {
		return nil, false
	}
	return r.SSO, true
}

// Clone returns a deep copy so callers cannot mutate stored records.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.SSO != nil {
		sso := *r.SSO
		sso.Scopes = append([]string(nil), r.SSO.Scopes...)
		c.SSO = &sso
	}
	if r.Credential != nil {
		cred := *r.Credential
		c.Credential = &cred
	}
	return &c
}

// Profile is a creation-time descriptor consumed by Registry.Create.
type Profile interface {
	IdentityKey() string
	Validate() error
	record() *Record
}

// ManagedSSOProfile creates a bearer-token connection.
type ManagedSSOProfile struct {
	Region    string
	StartURL  string
	Scopes    []string
	IssuerURL string
	ClientID  string
}

// IdentityKey is the SSO key, or the OIDC key when an issuer is set.
func (p ManagedSSOProfile) IdentityKey() string {
	if strings.TrimSpace(p.IssuerURL) != "" {
		return OIDCIdentityKey(p.IssuerURL, p.ClientID, p.StartURL)
	}
	return SSOIdentityKey(p.Region, p.StartURL)
}

func (p ManagedSSOProfile) Validate() error {
	if strings.TrimSpace(p.StartURL) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, ierrors.ErrMissingStartURL)
	}
	if strings.TrimSpace(p.Region) == "" && p.IssuerURL == "" {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, ierrors.ErrMissingRegion)
	}
	return nil
}

func (p ManagedSSOProfile) record() *Record {
	return &Record{
		ID:    p.IdentityKey(),
		Label: p.label(),
		Kind:  KindBearerToken,
		SSO: &SSOSettings{
			Region:    strings.TrimSpace(p.Region),
			StartURL:  NormalizeStartURL(p.StartURL),
			Scopes:    utils.NormalizeScopes(p.Scopes),
			IssuerURL: strings.TrimSpace(p.IssuerURL),
			ClientID:  strings.TrimSpace(p.ClientID),
		},
	}
}

func (p ManagedSSOProfile) label() string {
	if issuer := strings.TrimSpace(p.IssuerURL); issuer != "" {
		return fmt.Sprintf("OIDC (%s)", NormalizeStartURL(issuer))
	}
	return fmt.Sprintf("IAM Identity Center (%s)", NormalizeStartURL(p.StartURL))
}

// CredentialProfile creates a static credential connection.
type CredentialProfile struct {
	ProfileName string
	Region      string
}

func (p CredentialProfile) IdentityKey() string {
	return "profile:" + strings.TrimSpace(p.ProfileName)
}

func (p CredentialProfile) Validate() error {
	if strings.TrimSpace(p.ProfileName) == "" {
		return fmt.Errorf("%w: profile name is required", ErrInvalidProfile)
	}
	return nil
}

func (p CredentialProfile) record() *Record {
	name := strings.TrimSpace(p.ProfileName)
	return &Record{
		ID:         p.IdentityKey(),
		Label:      "Profile: " + name,
		Kind:       KindCredential,
		Credential: &CredentialSettings{ProfileName: name, Region: strings.TrimSpace(p.Region)},
	}
}

// SSOIdentityKey derives the identity key for an SSO start URL. Two profiles
// with the same region and start URL always share one connection.
func SSOIdentityKey(region, startURL string) string {
	return fmt.Sprintf("sso;%s;%s", strings.TrimSpace(region), NormalizeStartURL(startURL))
}

// OIDCIdentityKey derives the identity key for a generic OIDC issuer. The
// issuer and client are part of the key so distinct issuers never share a
// connection.
func OIDCIdentityKey(issuerURL, clientID, startURL string) string {
	return fmt.Sprintf("oidc;%s;%s;%s", NormalizeStartURL(issuerURL), strings.TrimSpace(clientID), NormalizeStartURL(startURL))
}

// NormalizeStartURL trims whitespace and trailing slashes.
func NormalizeStartURL(startURL string) string {
	return strings.TrimRight(strings.TrimSpace(startURL), "/")
}
