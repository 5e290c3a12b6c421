package cmd

import (
	"fmt"

	"github.com/dkadlec/presence/internal/config"
	"github.com/dkadlec/presence/internal/gallery"
	"github.com/dkadlec/presence/internal/roster"
	"github.com/dkadlec/presence/internal/vision"
)

// openRecognizer loads the dlib models and opens the face gallery over them.
func openRecognizer(cfg *config.Config) (*vision.Dlib, *gallery.Gallery, error) {
	rec, err := vision.NewDlib(cfg.Vision.ModelsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading face models from %s: %w", cfg.Vision.ModelsDir, err)
	}

	gal, err := gallery.Open(cfg.Gallery.Path, rec)
	if err != nil {
		rec.Close()
		return nil, nil, fmt.Errorf("opening gallery %s: %w", cfg.Gallery.Path, err)
	}
	return rec, gal, nil
}

// openRoster connects to the roster database when one is configured; with no
// DATABASE_URL it returns nils and the roster features stay off.
func openRoster(cfg *config.Config) (*roster.Pool, *roster.Store, error) {
	if cfg.Database.URL == "" {
		return nil, nil, nil
	}

	pool, err := roster.NewPool(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to roster database: %w", err)
	}
	return pool, roster.NewStore(pool), nil
}
