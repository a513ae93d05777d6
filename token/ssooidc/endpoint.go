// Package ssooidc implements token.Endpoint against the AWS IAM Identity
// Center OIDC service.
package ssooidc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/aws/smithy-go"
	"github.com/jrsteele09/go-sso-connect/token"
	"github.com/rs/zerolog/log"
)

const (
	deviceCodeGrant   = "urn:ietf:params:oauth:grant-type:device_code"
	refreshTokenGrant = "refresh_token"
	clientType        = "public"

	defaultInterval = 5 * time.Second
)

// API is the subset of the SSO-OIDC client used by Endpoint.
type API interface {
	RegisterClient(ctx context.Context, params *ssooidc.RegisterClientInput, optFns ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error)
	StartDeviceAuthorization(ctx context.Context, params *ssooidc.StartDeviceAuthorizationInput, optFns ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error)
	CreateToken(ctx context.Context, params *ssooidc.CreateTokenInput, optFns ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error)
}

// Settings identifies the Identity Center instance.
type Settings struct {
	Region     string
	StartURL   string
	Scopes     []string
	ClientName string
}

type registration struct {
	clientID     string
	clientSecret string
	expiresAt    time.Time
}

var _ token.Endpoint = (*Endpoint)(nil)

type Endpoint struct {
	api      API
	settings Settings
	nowFunc  func() time.Time

	mu           sync.Mutex
	registration *registration
}

type Option func(*Endpoint)

// WithAPI replaces the AWS client, mainly for tests.
func WithAPI(api API) Option {
	return func(e *Endpoint) {
		e.api = api
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(e *Endpoint) {
		e.nowFunc = now
	}
}

// New builds an endpoint for settings. Requests are sent unsigned since the
// OIDC API does not take AWS credentials.
func New(ctx context.Context, settings Settings, options ...Option) (*Endpoint, error) {
	if settings.Region == "" {
		return nil, errors.New("[ssooidc.New] region is required")
	}
	if settings.StartURL == "" {
		return nil, errors.New("[ssooidc.New] start url is required")
	}
	e := &Endpoint{settings: settings}
	for _, opt := range options {
		opt(e)
	}
	if e.nowFunc == nil {
		e.nowFunc = time.Now
	}
	if e.api == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(settings.Region),
			awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
		)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		e.api = ssooidc.NewFromConfig(cfg)
	}
	return e, nil
}

func (e *Endpoint) Refresh(ctx context.Context, current *token.Token) (*token.Token, error) {
	out, err := e.api.CreateToken(ctx, &ssooidc.CreateTokenInput{
		ClientId:     aws.String(current.ClientID),
		ClientSecret: aws.String(current.ClientSecret),
		GrantType:    aws.String(refreshTokenGrant),
		RefreshToken: aws.String(current.RefreshToken),
	})
	if err != nil {
		if isRefreshRejection(err) {
			return nil, fmt.Errorf("%w: %s", token.ErrTokenRefresh, describe(err))
		}
		return nil, err
	}
	tok := e.tokenFrom(out)
	tok.ClientID = current.ClientID
	tok.ClientSecret = current.ClientSecret
	tok.ClientExpiresAt = current.ClientExpiresAt
	return tok, nil
}

func (e *Endpoint) StartDeviceAuthorization(ctx context.Context) (*token.DeviceAuthorization, error) {
	reg, err := e.register(ctx)
	if err != nil {
		return nil, err
	}

	out, err := e.api.StartDeviceAuthorization(ctx, &ssooidc.StartDeviceAuthorizationInput{
		ClientId:     aws.String(reg.clientID),
		ClientSecret: aws.String(reg.clientSecret),
		StartUrl:     aws.String(e.settings.StartURL),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: start device authorization: %s", token.ErrAuthFailed, describe(err))
	}

	interval := time.Duration(out.Interval) * time.Second
	if interval <= 0 {
		interval = defaultInterval
	}
	return &token.DeviceAuthorization{
		UserCode:                aws.ToString(out.UserCode),
		VerificationURI:         aws.ToString(out.VerificationUri),
		VerificationURIComplete: aws.ToString(out.VerificationUriComplete),
		ExpiresAt:               e.nowFunc().Add(time.Duration(out.ExpiresIn) * time.Second),
		Interval:                interval,
		DeviceCode:              aws.ToString(out.DeviceCode),
		ClientID:                reg.clientID,
		ClientSecret:            reg.clientSecret,
		ClientExpiresAt:         reg.expiresAt,
	}, nil
}

// PollToken polls CreateToken until the user approves, the authorization
// expires or ctx is done.
func (e *Endpoint) PollToken(ctx context.Context, auth *token.DeviceAuthorization) (*token.Token, error) {
	interval := auth.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", token.ErrAuthCancelled, ctx.Err())
		case <-time.After(interval):
		}
		if !auth.ExpiresAt.IsZero() && e.nowFunc().After(auth.ExpiresAt) {
			return nil, fmt.Errorf("%w: device authorization expired", token.ErrAuthFailed)
		}

		out, err := e.api.CreateToken(ctx, &ssooidc.CreateTokenInput{
			ClientId:     aws.String(auth.ClientID),
			ClientSecret: aws.String(auth.ClientSecret),
			DeviceCode:   aws.String(auth.DeviceCode),
			GrantType:    aws.String(deviceCodeGrant),
		})
		if err == nil {
			tok := e.tokenFrom(out)
			tok.ClientID = auth.ClientID
			tok.ClientSecret = auth.ClientSecret
			tok.ClientExpiresAt = auth.ClientExpiresAt
			return tok, nil
		}

		var pending *types.AuthorizationPendingException
		var slowDown *types.SlowDownException
		var denied *types.AccessDeniedException
		switch {
		case errors.As(err, &pending):
			continue
		case errors.As(err, &slowDown):
			interval += defaultInterval
			log.Debug().Dur("interval", interval).Msg("sso-oidc asked to slow down polling")
			continue
		case errors.As(err, &denied):
			return nil, fmt.Errorf("%w: authorization denied", token.ErrAuthCancelled)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%w: %v", token.ErrAuthCancelled, ctx.Err())
		default:
			return nil, fmt.Errorf("%w: create token: %s", token.ErrAuthFailed, describe(err))
		}
	}
}

// register reuses the client registration until it expires.
func (e *Endpoint) register(ctx context.Context) (*registration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.registration != nil && e.nowFunc().Before(e.registration.expiresAt) {
		return e.registration, nil
	}

	out, err := e.api.RegisterClient(ctx, &ssooidc.RegisterClientInput{
		ClientName: aws.String(e.clientName()),
		ClientType: aws.String(clientType),
		Scopes:     e.settings.Scopes,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: register client: %s", token.ErrAuthFailed, describe(err))
	}
	e.registration = &registration{
		clientID:     aws.ToString(out.ClientId),
		clientSecret: aws.ToString(out.ClientSecret),
		expiresAt:    time.Unix(out.ClientSecretExpiresAt, 0),
	}
	return e.registration, nil
}

func (e *Endpoint) clientName() string {
	if e.settings.ClientName != "" {
		return e.settings.ClientName
	}
	return "go-sso-connect"
}

func (e *Endpoint) tokenFrom(out *ssooidc.CreateTokenOutput) *token.Token {
	now := e.nowFunc()
	return &token.Token{
		AccessToken:  aws.ToString(out.AccessToken),
		RefreshToken: aws.ToString(out.RefreshToken),
		ExpiresAt:    now.Add(time.Duration(out.ExpiresIn) * time.Second),
		IssuedAt:     now,
		Region:       e.settings.Region,
		StartURL:     e.settings.StartURL,
		Scopes:       append([]string(nil), e.settings.Scopes...),
	}
}

func isRefreshRejection(err error) bool {
	var invalidGrant *types.InvalidGrantException
	var expired *types.ExpiredTokenException
	var invalidClient *types.InvalidClientException
	var unauthorized *types.UnauthorizedClientException
	return errors.As(err, &invalidGrant) ||
		errors.As(err, &expired) ||
		errors.As(err, &invalidClient) ||
		errors.As(err, &unauthorized)
}

func describe(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err.Error()
}
