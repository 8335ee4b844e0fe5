package service

import (
	"context"
	"log"
	"time"

	"matchbook/snapshot"
)

// StartSnapshotJob periodically captures the book into the store and
// truncates journal segments the capture covers. The goroutine exits when
// ctx is cancelled. Requires a journal-backed service.
func (s *OrderService) StartSnapshotJob(ctx context.Context, store *snapshot.Store, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				snap := s.CaptureSnapshot()
				if err := store.Save(snap); err != nil {
					log.Printf("[snapshot] save failed: %v", err)
					continue
				}
				if err := s.wal.TruncateBefore(snap.Seq); err != nil {
					log.Printf("[snapshot] journal truncate failed: %v", err)
				}
			}
		}
	}()
}
