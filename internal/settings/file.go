package settings

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/guarzo/cardshop/internal/cache"
)

// FileStore keeps the settings document in a local JSON cache file.
type FileStore struct {
	cache *cache.Cache
}

func NewFileStore(path string) (*FileStore, error) {
	c, err := cache.New(path)
	if err != nil {
		return nil, errors.Wrap(err, "open settings file")
	}
	return &FileStore{cache: c}, nil
}

func (s *FileStore) Load(_ context.Context) (*Settings, error) {
	var st Settings
	found, err := s.cache.Get(cache.SettingsKey(), &st)
	if err != nil {
		return nil, errors.Wrap(err, "read pricing settings")
	}
	if !found {
		return nil, ErrNotConfigured
	}
	return &st, nil
}

func (s *FileStore) Save(_ context.Context, st *Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if err := s.cache.Put(cache.SettingsKey(), st, 0); err != nil {
		return errors.Wrap(err, "write pricing settings")
	}
	return nil
}
