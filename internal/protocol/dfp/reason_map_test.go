package dfp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultReasonMap(t *testing.T) {
	m := DefaultReasonMap()
	assert.Equal(t, "module busy", m.Describe(1))
	assert.Equal(t, "track not found", m.Describe(5))
	assert.Equal(t, "unknown error (99)", m.Describe(99))
}

func TestLoadReasonMapOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reasons.yaml")
	content := "map:\n  5: \"missing file\"\n  8: \"custom code\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loaded, err := LoadReasonMap(path)
	require.NoError(t, err)

	m := DefaultReasonMap()
	m.Merge(loaded)
	assert.Equal(t, "missing file", m.Describe(5))
	assert.Equal(t, "custom code", m.Describe(8))
	assert.Equal(t, "module busy", m.Describe(1))
}

func TestLoadReasonMapErrors(t *testing.T) {
	_, err := LoadReasonMap(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("map: [not a map"), 0o644))
	_, err = LoadReasonMap(path)
	assert.Error(t, err)
}

func TestDescribeNilSafe(t *testing.T) {
	var m *ReasonMap
	assert.Equal(t, "unknown error (3)", m.Describe(3))
	m.Merge(DefaultReasonMap()) // 不应 panic
}
