package app

import (
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FileLoader loads the file at a URL
type FileLoader interface {
	Load(url *url.URL) ([]byte, error)
}

// FileLoaderCtor constructs a FileLoader
type FileLoaderCtor func() (FileLoader, error)

type loaderRegistry struct {
	mu    sync.RWMutex
	ctors map[string]FileLoaderCtor
}

var loaders = &loaderRegistry{
	ctors: map[string]FileLoaderCtor{
		"":     newLocalLoader,
		"file": newLocalLoader,
	},
}

// RegisterFileLoaderCtor makes LoadFile handle URLs with scheme. It panics if
// the scheme already has a loader.
func RegisterFileLoaderCtor(scheme string, ctor FileLoaderCtor) {
	loaders.mu.Lock()
	defer loaders.mu.Unlock()

	if _, ok := loaders.ctors[scheme]; ok {
		panic(fmt.Sprintf("file loader already registered for scheme '%s'", scheme))
	}
	loaders.ctors[scheme] = ctor
}

// LoadFile loads fileURL with the loader registered for its scheme. URLs
// without a scheme are local paths.
func LoadFile(fileURL string) ([]byte, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid file url %s", fileURL)
	}

	loaders.mu.RLock()
	ctor, ok := loaders.ctors[u.Scheme]
	loaders.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("no file loader for scheme '%s'", u.Scheme)
	}

	loader, err := ctor()
	if err != nil {
		return nil, errors.Wrapf(err, "error creating loader for %s", fileURL)
	}
	return loader.Load(u)
}

type localLoader struct{}

func newLocalLoader() (FileLoader, error) {
	return localLoader{}, nil
}

func (localLoader) Load(u *url.URL) ([]byte, error) {
	return os.ReadFile(u.Path)
}
