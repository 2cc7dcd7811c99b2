package cli

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/greenledger/internal/config"
	"github.com/rshade/greenledger/internal/engine"
	"github.com/rshade/greenledger/internal/reference"
	"github.com/rshade/greenledger/internal/store"
)

// session bundles what most commands need: the effective configuration,
// an open store and a scoring engine over the reference dataset.
type session struct {
	cfg    *config.Config
	store  store.Store
	engine *engine.Engine
}

// Close releases the store.
func (s *session) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// openStore opens the configured store only.
func openStore(ctx context.Context) (store.Store, *config.Config, error) {
	cfg := config.GetGlobalConfig()
	if err := cfg.Storage.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid storage configuration: %w", err)
	}
	st, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	return st, cfg, nil
}

// loadSession opens the store and loads the reference dataset concurrently.
func loadSession(ctx context.Context) (*session, error) {
	cfg := config.GetGlobalConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var (
		st      store.Store
		dataset *reference.Dataset
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		st, err = store.Open(gctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		dataset, err = reference.Load(cfg.Reference.Path, cfg.Reference.Constraint)
		if err != nil {
			return fmt.Errorf("loading reference data: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		if st != nil {
			err = errors.Join(err, st.Close())
		}
		return nil, err
	}

	eng, err := engine.New(dataset, cfg.Scoring)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating engine: %w", err), st.Close())
	}

	logger.Debug().Ctx(ctx).
		Str("driver", cfg.Storage.Driver).
		Str("reference", dataset.Source).
		Str("reference_version", dataset.Version.String()).
		Msg("session loaded")

	return &session{cfg: cfg, store: st, engine: eng}, nil
}

// withSession runs fn with a loaded session and closes it afterwards.
func withSession(ctx context.Context, fn func(sess *session) error) (err error) {
	sess, err := loadSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing store: %w", closeErr)
		}
	}()
	return fn(sess)
}

// withStore runs fn with an open store and closes it afterwards.
func withStore(ctx context.Context, fn func(st store.Store, cfg *config.Config) error) (err error) {
	st, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing store: %w", closeErr)
		}
	}()
	return fn(st, cfg)
}
