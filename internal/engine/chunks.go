package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const (
	// bulkChunkConcurrency bounds how many chunk stores run at once
	// during a sweep, independent of the per-path serialization.
	bulkChunkConcurrency = 10
	// bulkProgressInterval is how many processed files sit between
	// progress log lines.
	bulkProgressInterval = 25
)

// CreateAllChunks sweeps every storage file and ensures its content chunks
// exist in the document store. Per-file failures are logged and isolated;
// one bad file never blocks the rest. showProgress raises progress logging
// from ambient debug level to a user-visible notice.
func (e *Engine) CreateAllChunks(ctx context.Context, showProgress bool) error {
	progress := e.logger.Debug
	if showProgress {
		progress = e.logger.Info
	}

	files, err := e.storage.EnumerateAll()
	if err != nil {
		return fmt.Errorf("enumerating storage: %w", err)
	}

	sem := semaphore.NewWeighted(bulkChunkConcurrency)
	var wg sync.WaitGroup
	var processed, failed atomic.Int64

	for _, file := range files {
		path := e.codec.Normalize(file.Path)
		if file.Internal || !e.isTarget(path) || e.shouldIgnore(path) {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(file *StorageFile, path string) {
			defer wg.Done()
			defer sem.Release(1)

			err := e.locks.RunSerialized(path, func() error {
				_, err := e.StoreFileToDB(file, false, true)
				return err
			})
			if err != nil {
				failed.Add(1)
				e.logger.Warn("chunk store failed", "path", path, "error", err)
			}
			if n := processed.Add(1); n%bulkProgressInterval == 0 {
				progress("chunk sweep progress", "processed", n, "total", len(files))
			}
		}(file, path)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	progress("chunk sweep complete", "processed", processed.Load(), "failed", failed.Load())
	return nil
}
