package ssooidc_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/jrsteele09/go-sso-connect/token"
	ssoendpoint "github.com/jrsteele09/go-sso-connect/token/ssooidc"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu              sync.Mutex
	registerCalls   int
	createErrs      []error
	createCalls     int
	lastCreateInput *ssooidc.CreateTokenInput
}

func (f *fakeAPI) RegisterClient(_ context.Context, _ *ssooidc.RegisterClientInput, _ ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	return &ssooidc.RegisterClientOutput{
		ClientId:              aws.String("client-id"),
		ClientSecret:          aws.String("client-secret"),
		ClientSecretExpiresAt: time.Now().Add(90 * 24 * time.Hour).Unix(),
	}, nil
}

func (f *fakeAPI) StartDeviceAuthorization(_ context.Context, _ *ssooidc.StartDeviceAuthorizationInput, _ ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error) {
	return &ssooidc.StartDeviceAuthorizationOutput{
		DeviceCode:              aws.String("device-code"),
		UserCode:                aws.String("ABCD-EFGH"),
		VerificationUri:         aws.String("https://device.sso.us-east-1.amazonaws.com/"),
		VerificationUriComplete: aws.String("https://device.sso.us-east-1.amazonaws.com/?user_code=ABCD-EFGH"),
		ExpiresIn:               600,
		Interval:                1,
	}, nil
}

func (f *fakeAPI) CreateToken(_ context.Context, params *ssooidc.CreateTokenInput, _ ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastCreateInput = params
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		return nil, err
	}
	return &ssooidc.CreateTokenOutput{
		AccessToken:  aws.String("access-token"),
		RefreshToken: aws.String("refresh-token"),
		ExpiresIn:    3600,
	}, nil
}

func newEndpoint(t *testing.T, api *fakeAPI) *ssoendpoint.Endpoint {
	t.Helper()
	e, err := ssoendpoint.New(context.Background(), ssoendpoint.Settings{
		Region:   "us-east-1",
		StartURL: "https://company.awsapps.com/start",
		Scopes:   []string{"sso:account:access"},
	}, ssoendpoint.WithAPI(api))
	require.NoError(t, err)
	return e
}

func TestNew_Validation(t *testing.T) {
	_, err := ssoendpoint.New(context.Background(), ssoendpoint.Settings{StartURL: "https://x"}, ssoendpoint.WithAPI(&fakeAPI{}))
	require.Error(t, err)
	_, err = ssoendpoint.New(context.Background(), ssoendpoint.Settings{Region: "us-east-1"}, ssoendpoint.WithAPI(&fakeAPI{}))
	require.Error(t, err)
}

func TestEndpoint_DeviceFlow(t *testing.T) {
	api := &fakeAPI{createErrs: []error{
		&types.AuthorizationPendingException{Message: aws.String("pending")},
	}}
	e := newEndpoint(t, api)

	auth, err := e.StartDeviceAuthorization(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ABCD-EFGH", auth.UserCode)
	require.Equal(t, "client-id", auth.ClientID)
	auth.Interval = time.Millisecond

	tok, err := e.PollToken(context.Background(), auth)
	require.NoError(t, err)
	require.Equal(t, "access-token", tok.AccessToken)
	require.Equal(t, "refresh-token", tok.RefreshToken)
	require.Equal(t, "client-id", tok.ClientID)
	require.Equal(t, "us-east-1", tok.Region)
	require.Equal(t, 2, api.createCalls)
	require.Equal(t, "urn:ietf:params:oauth:grant-type:device_code", aws.ToString(api.lastCreateInput.GrantType))

	_, err = e.StartDeviceAuthorization(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, api.registerCalls, "client registration is reused")
}

func TestEndpoint_PollDenied(t *testing.T) {
	api := &fakeAPI{createErrs: []error{&types.AccessDeniedException{Message: aws.String("denied")}}}
	e := newEndpoint(t, api)

	_, err := e.PollToken(context.Background(), &token.DeviceAuthorization{Interval: time.Millisecond})
	require.ErrorIs(t, err, token.ErrAuthCancelled)
}

func TestEndpoint_PollExpired(t *testing.T) {
	api := &fakeAPI{createErrs: []error{&types.ExpiredTokenException{Message: aws.String("expired")}}}
	e := newEndpoint(t, api)

	_, err := e.PollToken(context.Background(), &token.DeviceAuthorization{Interval: time.Millisecond})
	require.ErrorIs(t, err, token.ErrAuthFailed)
}

func TestEndpoint_PollStopsOnCancel(t *testing.T) {
	api := &fakeAPI{}
	e := newEndpoint(t, api)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.PollToken(ctx, &token.DeviceAuthorization{Interval: time.Hour})
	require.ErrorIs(t, err, token.ErrAuthCancelled)
	require.Zero(t, api.createCalls)
}

func TestEndpoint_Refresh(t *testing.T) {
	api := &fakeAPI{}
	e := newEndpoint(t, api)
	current := &token.Token{RefreshToken: "old-refresh", ClientID: "client-id", ClientSecret: "client-secret"}

	tok, err := e.Refresh(context.Background(), current)
	require.NoError(t, err)
	require.Equal(t, "access-token", tok.AccessToken)
	require.Equal(t, "client-id", tok.ClientID)
	require.Equal(t, "refresh_token", aws.ToString(api.lastCreateInput.GrantType))
	require.Equal(t, "old-refresh", aws.ToString(api.lastCreateInput.RefreshToken))
}

func TestEndpoint_RefreshRejected(t *testing.T) {
	api := &fakeAPI{createErrs: []error{&types.InvalidGrantException{Message: aws.String("bad grant")}}}
	e := newEndpoint(t, api)

	_, err := e.Refresh(context.Background(), &token.Token{RefreshToken: "r"})
	require.ErrorIs(t, err, token.ErrTokenRefresh)
}
