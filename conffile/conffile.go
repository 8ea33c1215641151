// Package conffile reads and writes the YAML application catalog the
// bot serves from, persisted as a single object in the store.
package conffile

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/goccy/go-yaml"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "paskoocheh.conffile")

// ErrDecode marks catalogs that could not be parsed.
var ErrDecode = errors.New("conffile: malformed catalog")

// DefaultKey is where the catalog lives in the bucket.
const DefaultKey = "config/apps.yml"

// ObjectStore is the slice of the storage layer the catalog needs.
// *storage.Store satisfies it.
type ObjectStore interface {
	GetBinary(ctx context.Context, key string) ([]byte, error)
	PutBinary(ctx context.Context, key string, body []byte) error
}

// App describes one downloadable release in the catalog.
type App struct {
	Name        string `yaml:"name"`
	OS          string `yaml:"os"`
	Version     string `yaml:"version"`
	FileKey     string `yaml:"file_key"`
	Checksum    string `yaml:"checksum"`
	ReleaseDate string `yaml:"release_date"`
}

// ConfigFile is the whole catalog.
type ConfigFile struct {
	Updated time.Time `yaml:"updated"`
	Apps    []App     `yaml:"apps"`
}

// Load fetches and parses the catalog stored under key.
func Load(ctx context.Context, store ObjectStore, key string) (*ConfigFile, error) {
	if key == "" {
		key = DefaultKey
	}

	body, err := store.GetBinary(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", key)
	}

	var cf ConfigFile
	if err := yaml.Unmarshal(body, &cf); err != nil {
		return nil, errors.Wrapf(ErrDecode, "%s: %v", key, err)
	}

	logger.WithFields(logrus.Fields{"key": key, "apps": len(cf.Apps)}).Debug("catalog loaded")
	return &cf, nil
}

// Save marshals the catalog and writes it back under key, stamping
// Updated first.
func Save(ctx context.Context, store ObjectStore, key string, cf *ConfigFile) error {
	if key == "" {
		key = DefaultKey
	}

	cf.Updated = time.Now().UTC()
	body, err := yaml.Marshal(cf)
	if err != nil {
		return errors.Wrap(err, "encode catalog")
	}
	if err := store.PutBinary(ctx, key, body); err != nil {
		return errors.Wrapf(err, "save %s", key)
	}
	return nil
}

// FindApp returns the catalog entry matching name and os, or nil.
func (cf *ConfigFile) FindApp(name, os string) *App {
	for i := range cf.Apps {
		if cf.Apps[i].Name == name && cf.Apps[i].OS == os {
			return &cf.Apps[i]
		}
	}
	return nil
}
