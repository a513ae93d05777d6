package token

import "context"

// Endpoint is the identity provider a Provider talks to.
//
// Refresh must wrap ErrTokenRefresh when the refresh token is rejected.
// PollToken must wrap ErrAuthCancelled when the user denies the request and
// ErrAuthFailed when the backend rejects it; it must stop calling the backend
// as soon as ctx is done.
type Endpoint interface {
	Refresh(ctx context.Context, current *Token) (*Token, error)
	StartDeviceAuthorization(ctx context.Context) (*DeviceAuthorization, error)
	PollToken(ctx context.Context, auth *DeviceAuthorization) (*Token, error)
}

// Interaction presents an interactive authorization to the user. Begin
// returns a context that is cancelled if the user aborts, and a finish
// function that receives the outcome of the flow.
type Interaction interface {
	Begin(ctx context.Context, connectionID string, auth DeviceAuthorization) (context.Context, func(error))
}

// NopInteraction shows nothing and never cancels.
type NopInteraction struct{}

func (NopInteraction) Begin(ctx context.Context, _ string, _ DeviceAuthorization) (context.Context, func(error)) {
	return ctx, func(error) {}
}
