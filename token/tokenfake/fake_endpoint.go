package tokenfake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-sso-connect/token"
)

var _ token.Endpoint = (*FakeEndpoint)(nil)

// FakeEndpoint issues deterministic tokens and counts calls. Setting one of
// the error fields makes the matching call fail.
type FakeEndpoint struct {
	RefreshErr error
	StartErr   error
	PollErr    error
	// PollFunc overrides PollToken when set.
	PollFunc func(ctx context.Context, auth *token.DeviceAuthorization) (*token.Token, error)
	TTL      time.Duration

	lock         sync.Mutex
	refreshCalls int
	startCalls   int
	pollCalls    int
}

func NewFakeEndpoint() *FakeEndpoint {
	return &FakeEndpoint{TTL: time.Hour}
}

func (e *FakeEndpoint) Refresh(_ context.Context, current *token.Token) (*token.Token, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.refreshCalls++
	if e.RefreshErr != nil {
		return nil, e.RefreshErr
	}
	return &token.Token{
		AccessToken: fmt.Sprintf("refreshed-%d", e.refreshCalls),
		ExpiresAt:   time.Now().Add(e.TTL),
		Region:      current.Region,
		StartURL:    current.StartURL,
	}, nil
}

func (e *FakeEndpoint) StartDeviceAuthorization(_ context.Context) (*token.DeviceAuthorization, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.startCalls++
	if e.StartErr != nil {
		return nil, e.StartErr
	}
	return &token.DeviceAuthorization{
		UserCode:                "ABCD-EFGH",
		VerificationURI:         "https://device.example.com",
		VerificationURIComplete: "https://device.example.com?user_code=ABCD-EFGH",
		ExpiresAt:               time.Now().Add(10 * time.Minute),
		Interval:                time.Millisecond,
		DeviceCode:              fmt.Sprintf("device-%d", e.startCalls),
		ClientID:                "fake-client",
		ClientSecret:            "fake-secret",
		ClientExpiresAt:         time.Now().Add(24 * time.Hour),
	}, nil
}

func (e *FakeEndpoint) PollToken(ctx context.Context, auth *token.DeviceAuthorization) (*token.Token, error) {
	e.lock.Lock()
	e.pollCalls++
	n := e.pollCalls
	pollFunc, pollErr := e.PollFunc, e.PollErr
	e.lock.Unlock()

	if pollFunc != nil {
		return pollFunc(ctx, auth)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pollErr != nil {
		return nil, pollErr
	}
	return &token.Token{
		AccessToken:     fmt.Sprintf("access-%d", n),
		RefreshToken:    fmt.Sprintf("refresh-%d", n),
		ExpiresAt:       time.Now().Add(e.TTL),
		ClientID:        auth.ClientID,
		ClientSecret:    auth.ClientSecret,
		ClientExpiresAt: auth.ClientExpiresAt,
	}, nil
}

func (e *FakeEndpoint) RefreshCalls() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.refreshCalls
}

func (e *FakeEndpoint) StartCalls() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.startCalls
}

func (e *FakeEndpoint) PollCalls() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.pollCalls
}
