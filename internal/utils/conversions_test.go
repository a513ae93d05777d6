package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-sso-connect/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, utils.SplitList("a, b c,,"))
	require.Empty(t, utils.SplitList("  "))
}

func TestNormalizeScopes(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, utils.NormalizeScopes([]string{"b", " a", "b", ""}))
}

func TestContainsAll(t *testing.T) {
	require.True(t, utils.ContainsAll([]string{"a", "b"}, []string{"b"}))
	require.True(t, utils.ContainsAll([]string{"a"}, nil))
	require.False(t, utils.ContainsAll([]string{"a"}, []string{"a", "c"}))
}
