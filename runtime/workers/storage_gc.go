package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// StorageGCWorker reclaims space in the badger value log on a fixed cadence.
// Badger never runs this on its own; without it an append-only store grows
// without bound.
type StorageGCWorker struct {
	db       *badger.DB
	log      *slog.Logger
	interval time.Duration
}

func NewStorageGCWorker(db *badger.DB, log *slog.Logger, interval time.Duration) *StorageGCWorker {
	return &StorageGCWorker{db: db, log: log, interval: interval}
}

func (w *StorageGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping storage GC worker")
			return nil
		case <-ticker.C:
			// Repeat while a GC pass actually rewrote a log file.
			for {
				if err := w.db.RunValueLogGC(0.5); err != nil {
					if err != badger.ErrNoRewrite {
						w.log.Warn("value log GC failed", "error", err)
					}
					break
				}
			}
		}
	}
}
