package sessions_test

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/jrsteele09/go-sso-connect/connections"
	"github.com/jrsteele09/go-sso-connect/events"
	"github.com/jrsteele09/go-sso-connect/sessions"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	registry *connections.Registry
	manager  *sessions.Manager
	a, b     *connections.Record

	mu     sync.Mutex
	events []events.Event
}

func newFixture(t *testing.T, repo sessions.Repo, options ...sessions.ManagerOption) *fixture {
	t.Helper()
	f := &fixture{}
	registry, err := connections.NewRegistry(connections.NewInMemoryRepo())
	require.NoError(t, err)
	f.registry = registry

	f.a, err = registry.Create(connections.ManagedSSOProfile{Region: "us-east-1", StartURL: "https://a.awsapps.com/start"})
	require.NoError(t, err)
	f.b, err = registry.Create(connections.ManagedSSOProfile{Region: "eu-west-1", StartURL: "https://b.awsapps.com/start"})
	require.NoError(t, err)

	bus := events.NewBus()
	bus.Subscribe(func(evt events.Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, evt)
	})

	options = append(options, sessions.WithPublisher(bus))
	f.manager, err = sessions.NewManager(repo, registry, options...)
	require.NoError(t, err)
	registry.OnDelete(f.manager.ConnectionDeleted)
	return f
}

func (f *fixture) recorded() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.events...)
}

func TestNewManager_Validation(t *testing.T) {
	registry, err := connections.NewRegistry(connections.NewInMemoryRepo())
	require.NoError(t, err)

	_, err = sessions.NewManager(nil, registry)
	require.Error(t, err)
	_, err = sessions.NewManager(sessions.NewInMemoryRepo(), nil)
	require.Error(t, err)
}

func TestManager_SwitchConnection(t *testing.T) {
	f := newFixture(t, sessions.NewInMemoryRepo())
	require.Nil(t, f.manager.ActiveConnection())

	require.NoError(t, f.manager.SwitchConnection(f.a))
	require.Equal(t, f.a.ID, f.manager.ActiveConnection().ID)

	require.NoError(t, f.manager.SwitchConnection(nil))
	require.Nil(t, f.manager.ActiveConnection())

	evts := f.recorded()
	require.Len(t, evts, 2)
	require.Equal(t, events.ActiveConnectionChanged, evts[0].Type)
	require.Equal(t, f.a.ID, evts[0].ConnectionID)
	require.Empty(t, evts[1].ConnectionID)
}

func TestManager_FeaturePinAndFallback(t *testing.T) {
	f := newFixture(t, sessions.NewInMemoryRepo())
	require.NoError(t, f.manager.SwitchConnection(f.a))

	require.Equal(t, f.a.ID, f.manager.ActiveConnectionForFeature("codewhisperer").ID)

	require.NoError(t, f.manager.PinFeature("codewhisperer", f.b))
	require.Equal(t, f.b.ID, f.manager.ActiveConnectionForFeature("codewhisperer").ID)
	require.Equal(t, f.a.ID, f.manager.ActiveConnectionForFeature("other").ID)

	evts := f.recorded()
	require.Equal(t, "codewhisperer", evts[len(evts)-1].Feature)

	require.NoError(t, f.registry.Delete(f.b.ID))
	require.Equal(t, f.a.ID, f.manager.ActiveConnectionForFeature("codewhisperer").ID)
}

func TestManager_PinnedRecordMissingFallsBackWithoutHook(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	f := newFixture(t, repo)
	require.NoError(t, f.manager.SwitchConnection(f.a))
	require.NoError(t, repo.Upsert(sessions.Selection{Scope: sessions.FeatureScope("q"), ConnectionID: "sso;gone;https://gone"}))

	require.Equal(t, f.a.ID, f.manager.ActiveConnectionForFeature("q").ID)
}

func TestManager_ConnectionDeletedClearsGlobal(t *testing.T) {
	f := newFixture(t, sessions.NewInMemoryRepo())
	require.NoError(t, f.manager.SwitchConnection(f.a))

	require.NoError(t, f.registry.Delete(f.a.ID))
	require.Nil(t, f.manager.ActiveConnection())

	selections, err := f.manager.Selections()
	require.NoError(t, err)
	require.Empty(t, selections)
}

func TestManager_SeedsFeaturePins(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	registry, err := connections.NewRegistry(connections.NewInMemoryRepo())
	require.NoError(t, err)
	rec, err := registry.Create(connections.ManagedSSOProfile{Region: "us-east-1", StartURL: "https://a.awsapps.com/start"})
	require.NoError(t, err)

	m, err := sessions.NewManager(repo, registry, sessions.WithFeaturePins(map[string]string{"q": rec.ID}))
	require.NoError(t, err)
	require.Equal(t, rec.ID, m.ActiveConnectionForFeature("q").ID)

	require.NoError(t, m.PinFeature("q", nil))
	require.Nil(t, m.ActiveConnectionForFeature("q"))
}

func TestFileRepo_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.yaml")
	repo, err := sessions.NewFileRepo(path)
	require.NoError(t, err)

	f := newFixture(t, repo)
	require.NoError(t, f.manager.SwitchConnection(f.a))
	require.NoError(t, f.manager.PinFeature("q", f.b))

	reopened, err := sessions.NewFileRepo(path)
	require.NoError(t, err)
	global, err := reopened.Get(sessions.GlobalScope)
	require.NoError(t, err)
	require.Equal(t, f.a.ID, global.ConnectionID)

	pin, err := reopened.Get(sessions.FeatureScope("q"))
	require.NoError(t, err)
	require.Equal(t, f.b.ID, pin.ConnectionID)

	_, err = reopened.Get(sessions.FeatureScope("missing"))
	require.ErrorIs(t, err, sessions.ErrSelectionNotFound)
}
