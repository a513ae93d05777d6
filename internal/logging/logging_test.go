package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-sso-connect/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ssoconn.log")
	require.NoError(t, logging.Setup("debug", path))
	t.Cleanup(func() {
		_ = logging.Close()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	log.Info().Str("connection_id", "abc").Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"connection_id":"abc"`)
}

func TestSetup_InvalidLevel(t *testing.T) {
	require.Error(t, logging.Setup("chatty", ""))
}
