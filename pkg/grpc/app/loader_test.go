package app

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Local(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert.pem")
	require.NoError(t, os.WriteFile(path, []byte("contents"), 0600))

	for _, fileURL := range []string{path, "file://" + path} {
		loaded, err := LoadFile(fileURL)
		require.NoError(t, err)
		assert.Equal(t, []byte("contents"), loaded)
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}

func TestLoadFile_UnknownScheme(t *testing.T) {
	_, err := LoadFile("s3://bucket/cert.pem")
	assert.Error(t, err)
}

type staticLoader struct{}

func (l *staticLoader) Load(u *url.URL) ([]byte, error) {
	return []byte(u.Host + u.Path), nil
}

func TestRegisterFileLoaderCtor(t *testing.T) {
	RegisterFileLoaderCtor("static", func() (FileLoader, error) {
		return &staticLoader{}, nil
	})

	loaded, err := LoadFile("static://host/path")
	require.NoError(t, err)
	assert.Equal(t, []byte("host/path"), loaded)

	assert.Panics(t, func() {
		RegisterFileLoaderCtor("static", func() (FileLoader, error) {
			return &staticLoader{}, nil
		})
	})
}
