package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeProject lays files out under a fresh base folder.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	base := t.TempDir()
	for name, content := range files {
		path := filepath.Join(base, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return base
}

// quietLoader returns a loader that records BABEL_ENV instead of exporting it.
func quietLoader(env map[string]string) *Loader {
	l := NewLoader(nil)
	l.LookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	l.Setenv = func(key, value string) error {
		env[key] = value
		return nil
	}
	return l
}
