package connections_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-sso-connect/connections"
	"github.com/stretchr/testify/require"
)

func TestFileRepo_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "connections.yaml")

	repo, err := connections.NewFileRepo(path)
	require.NoError(t, err)
	r, err := connections.NewRegistry(repo)
	require.NoError(t, err)

	rec, err := r.Create(ssoProfile())
	require.NoError(t, err)
	_, err = r.Create(connections.CredentialProfile{ProfileName: "dev"})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := connections.NewFileRepo(path)
	require.NoError(t, err)
	got, err := reopened.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.SSO.StartURL, got.SSO.StartURL)
	require.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	list, err := reopened.List()
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, reopened.Delete(rec.ID))
	again, err := connections.NewFileRepo(path)
	require.NoError(t, err)
	_, err = again.Get(rec.ID)
	require.ErrorIs(t, err, connections.ErrConnectionNotFound)
}

func TestFileRepo_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connections.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connections: {not: [a list"), 0o600))

	_, err := connections.NewFileRepo(path)
	require.Error(t, err)
}

func TestFileRepo_DeleteMissing(t *testing.T) {
	repo, err := connections.NewFileRepo(filepath.Join(t.TempDir(), "connections.yaml"))
	require.NoError(t, err)
	require.NoError(t, repo.Delete("missing"))
}
