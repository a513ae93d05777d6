package connections_test

import (
	"sync"
	"testing"

	"github.com/jrsteele09/go-sso-connect/connections"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRegion   = "us-east-1"
	testStartURL = "https://company.awsapps.com/start"
)

func newRegistry(t *testing.T, options ...connections.RegistryOption) *connections.Registry {
	t.Helper()
	r, err := connections.NewRegistry(connections.NewInMemoryRepo(), options...)
	require.NoError(t, err)
	return r
}

func ssoProfile() connections.ManagedSSOProfile {
	return connections.ManagedSSOProfile{
		Region:   testRegion,
		StartURL: testStartURL,
		Scopes:   []string{"sso:account:access"},
	}
}

func TestNewRegistry_RequiresRepo(t *testing.T) {
	_, err := connections.NewRegistry(nil)
	require.Error(t, err)
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r := newRegistry(t)

	rec, err := r.Create(ssoProfile())
	require.NoError(t, err)
	require.Equal(t, "sso;us-east-1;https://company.awsapps.com/start", rec.ID)
	require.Equal(t, connections.KindBearerToken, rec.Kind)
	require.False(t, rec.CreatedAt.IsZero())

	sso, ok := rec.BearerToken()
	require.True(t, ok)
	require.Equal(t, testStartURL, sso.StartURL)

	got, err := r.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestRegistry_CreateDuplicate(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Create(ssoProfile())
	require.NoError(t, err)

	p := ssoProfile()
	p.StartURL = testStartURL + "/"
	_, err = r.Create(p)
	require.ErrorIs(t, err, connections.ErrDuplicateConnection)

	list, err := r.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestRegistry_CreateIfAbsent(t *testing.T) {
	r := newRegistry(t)

	first, created, err := r.CreateIfAbsent(ssoProfile())
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := r.CreateIfAbsent(ssoProfile())
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
}

func TestRegistry_CreateIfAbsent_Concurrent(t *testing.T) {
	r := newRegistry(t)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, c, err := r.CreateIfAbsent(ssoProfile())
			assert.NoError(t, err)
			if c {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, created)
	list, err := r.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestRegistry_CreateInvalidProfile(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Create(connections.ManagedSSOProfile{Region: testRegion})
	require.ErrorIs(t, err, connections.ErrInvalidProfile)

	_, err = r.Create(connections.CredentialProfile{})
	require.ErrorIs(t, err, connections.ErrInvalidProfile)

	_, err = r.Create(nil)
	require.ErrorIs(t, err, connections.ErrInvalidProfile)
}

func TestRegistry_GetMissing(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Get("nope")
	require.ErrorIs(t, err, connections.ErrConnectionNotFound)
}

func TestRegistry_DeleteIdempotentAndRunsHooks(t *testing.T) {
	var deleted []string
	r := newRegistry(t, connections.WithDeleteHook(func(id string) {
		deleted = append(deleted, id)
	}))

	rec, err := r.Create(ssoProfile())
	require.NoError(t, err)

	require.NoError(t, r.Delete(rec.ID))
	require.NoError(t, r.Delete(rec.ID))
	require.Equal(t, []string{rec.ID}, deleted)

	_, err = r.Get(rec.ID)
	require.ErrorIs(t, err, connections.ErrConnectionNotFound)
}

func TestRegistry_CredentialConnection(t *testing.T) {
	r := newRegistry(t)

	rec, err := r.Create(connections.CredentialProfile{ProfileName: "dev", Region: "eu-west-1"})
	require.NoError(t, err)
	require.Equal(t, "profile:dev", rec.ID)
	require.Equal(t, connections.KindCredential, rec.Kind)

	_, ok := rec.BearerToken()
	require.False(t, ok)
}

func TestRegistry_ReturnedRecordsAreCopies(t *testing.T) {
	r := newRegistry(t)
	rec, err := r.Create(ssoProfile())
	require.NoError(t, err)

	rec.SSO.Scopes[0] = "mutated"
	got, err := r.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"sso:account:access"}, got.SSO.Scopes)
}
