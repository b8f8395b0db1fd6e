package diary

import (
	"context"
	"fmt"

	"glyko/diary/pkg/mg"
	"glyko/diary/pkg/ns"

	"go.uber.org/zap"
)

type FetcherStore interface {
	mg.GlucoseStore
}

// Fetcher syncs recent readings from a remote source into the store.
type Fetcher struct {
	Source ns.Source
	Store  FetcherStore

	Logger *zap.Logger
}

func (f *Fetcher) FetchAndLoad() error {
	grs, err := f.Source.Readings(context.Background(), ns.CountLimit)
	if err != nil {
		f.Logger.Debug("unable to fetch readings", zap.Error(err))
		return err
	}

	// Newest first; stop at the first reading the store already has.
	for i := len(grs) - 1; i >= 0; i-- {
		res, err := f.Store.WriteGlucose(context.Background(), grs[i])
		if err != nil {
			return fmt.Errorf("unable to write glucose to store: %w", err)
		}
		if res.MatchedCount > 0 { // Matched.
			break
		}
	}
	return nil
}
