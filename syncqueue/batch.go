package syncqueue

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// HandleBatch syncs events in priority order, BatchSize at a time, pausing
// BatchDelay between batches. Results follow the sorted order.
func (q *Queue) HandleBatch(ctx context.Context, events []Event) []SyncResult {
	sorted := SortByPriority(events)
	results := make([]SyncResult, len(sorted))

	size := q.cfg.BatchSize
	for start := 0; start < len(sorted); start += size {
		if start > 0 && q.cfg.BatchDelay > 0 {
			if err := q.cfg.Sleep(ctx, q.cfg.BatchDelay); err != nil {
				q.logger.Warn().Err(err).Int("remaining", len(sorted)-start).Msg("batch interrupted")
				interrupt(results, sorted, start, err)
				return results
			}
		}

		end := min(start+size, len(sorted))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(size)
		for i := start; i < end; i++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					results[i] = interrupted(sorted[i], err)
					return err
				}
				results[i] = q.EnqueueAndSync(gctx, sorted[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			q.logger.Warn().Err(err).Int("remaining", len(sorted)-end).Msg("batch interrupted")
			interrupt(results, sorted, end, err)
			return results
		}

		q.logger.Debug().Int("batch_start", start).Int("batch_end", end).Msg("batch processed")
	}
	return results
}

// interrupt marks every event from start on as not attempted
func interrupt(results []SyncResult, sorted []Event, start int, err error) {
	for i := start; i < len(sorted); i++ {
		results[i] = interrupted(sorted[i], err)
	}
}

func interrupted(ev Event, err error) SyncResult {
	return SyncResult{
		Key:     ev.Key(),
		EventID: ev.ID,
		Type:    ev.Type,
		Error:   err.Error(),
	}
}
