package tokenfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-sso-connect/token"
)

var _ token.Interaction = (*FakeInteraction)(nil)

// FakeInteraction records presented authorizations. With Cancel set it
// behaves like a user pressing cancel as soon as the prompt appears.
type FakeInteraction struct {
	Cancel bool

	lock     sync.Mutex
	begun    []token.DeviceAuthorization
	outcomes []error
}

func (i *FakeInteraction) Begin(ctx context.Context, _ string, auth token.DeviceAuthorization) (context.Context, func(error)) {
	i.lock.Lock()
	i.begun = append(i.begun, auth)
	i.lock.Unlock()

	flowCtx, cancel := context.WithCancel(ctx)
	if i.Cancel {
		cancel()
	}
	return flowCtx, func(err error) {
		cancel()
		i.lock.Lock()
		defer i.lock.Unlock()
		i.outcomes = append(i.outcomes, err)
	}
}

func (i *FakeInteraction) Begun() int {
	i.lock.Lock()
	defer i.lock.Unlock()
	return len(i.begun)
}

func (i *FakeInteraction) Outcomes() []error {
	i.lock.Lock()
	defer i.lock.Unlock()
	return append([]error(nil), i.outcomes...)
}
