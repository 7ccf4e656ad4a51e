package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// The lifecycle state machine. Every transition runs in its own transaction:
// the current state is read, validated against the allowed source states, and
// the row is updated in one atomic step. Hooks observing a transition fire
// only after the transaction commits.

// MarkQueued moves a video into queued at the start of a download attempt.
// queued is allowed as a source so an item left behind by an unclean shutdown
// is simply retried.
func (s *Store) MarkQueued(ctx context.Context, id string) (*Video, error) {
	return s.transition(ctx, id, StateQueued, []State{StateNew, StateQueued}, func(tx *sql.Tx, now string) error {
		_, err := tx.ExecContext(
			ctx,
			`UPDATE videos SET state = ?, sleep_until = NULL, failure_reason = NULL, updated_at = ? WHERE id = ?`,
			StateQueued, now, id,
		)
		return err
	})
}

// MarkDownloaded records a completed download and its final path.
func (s *Store) MarkDownloaded(ctx context.Context, id, path string) (*Video, error) {
	return s.transition(ctx, id, StateDownloaded, []State{StateQueued}, func(tx *sql.Tx, now string) error {
		_, err := tx.ExecContext(
			ctx,
			`UPDATE videos SET state = ?, download_path = ?, sleep_until = NULL, failure_reason = NULL, updated_at = ? WHERE id = ?`,
			StateDownloaded, nullableString(path), now, id,
		)
		return err
	})
}

// MarkFailed records a downloader failure.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) (*Video, error) {
	return s.transition(ctx, id, StateFailed, []State{StateQueued}, func(tx *sql.Tx, now string) error {
		_, err := tx.ExecContext(
			ctx,
			`UPDATE videos SET state = ?, failure_reason = ?, sleep_until = NULL, updated_at = ? WHERE id = ?`,
			StateFailed, nullableString(reason), now, id,
		)
		return err
	})
}

// ReturnToNew puts a queued video back to new, keeping it retry-eligible.
// The failure-skip policy passes the downloader error so the failure stays
// visible on the record; an interrupted run passes an empty reason.
func (s *Store) ReturnToNew(ctx context.Context, id, reason string) (*Video, error) {
	return s.transition(ctx, id, StateNew, []State{StateQueued}, func(tx *sql.Tx, now string) error {
		_, err := tx.ExecContext(
			ctx,
			`UPDATE videos SET state = ?, failure_reason = ?, sleep_until = NULL, updated_at = ? WHERE id = ?`,
			StateNew, nullableString(reason), now, id,
		)
		return err
	})
}

// RetryFailed moves a failed video back to new for another attempt.
func (s *Store) RetryFailed(ctx context.Context, id string) (*Video, error) {
	return s.transition(ctx, id, StateNew, []State{StateFailed}, func(tx *sql.Tx, now string) error {
		_, err := tx.ExecContext(
			ctx,
			`UPDATE videos SET state = ?, failure_reason = NULL, updated_at = ? WHERE id = ?`,
			StateNew, now, id,
		)
		return err
	})
}

// Skip marks a video intentionally excluded from download.
func (s *Store) Skip(ctx context.Context, id string) (*Video, error) {
	return s.transition(ctx, id, StateSkipped, []State{StateNew, StateQueued}, func(tx *sql.Tx, now string) error {
		_, err := tx.ExecContext(
			ctx,
			`UPDATE videos SET state = ?, sleep_until = NULL, updated_at = ? WHERE id = ?`,
			StateSkipped, now, id,
		)
		return err
	})
}

// Unskip returns a skipped video to new.
func (s *Store) Unskip(ctx context.Context, id string) (*Video, error) {
	return s.transition(ctx, id, StateNew, []State{StateSkipped}, func(tx *sql.Tx, now string) error {
		_, err := tx.ExecContext(
			ctx,
			`UPDATE videos SET state = ?, updated_at = ? WHERE id = ?`,
			StateNew, now, id,
		)
		return err
	})
}

// Sleep defers a video until the given wake time.
func (s *Store) Sleep(ctx context.Context, id string, until time.Time) (*Video, error) {
	if until.IsZero() {
		return nil, errors.New("wake time is required")
	}
	return s.transition(ctx, id, StateSleeping, []State{StateNew, StateQueued}, func(tx *sql.Tx, now string) error {
		_, err := tx.ExecContext(
			ctx,
			`UPDATE videos SET state = ?, sleep_until = ?, updated_at = ? WHERE id = ?`,
			StateSleeping, until.UTC().Format(time.RFC3339Nano), now, id,
		)
		return err
	})
}

// Unsleep wakes a sleeping video immediately.
func (s *Store) Unsleep(ctx context.Context, id string) (*Video, error) {
	return s.transition(ctx, id, StateNew, []State{StateSleeping}, func(tx *sql.Tx, now string) error {
		_, err := tx.ExecContext(
			ctx,
			`UPDATE videos SET state = ?, sleep_until = NULL, updated_at = ? WHERE id = ?`,
			StateNew, now, id,
		)
		return err
	})
}

// WakeExpired returns every sleeping video whose wake time has passed to new.
// Evaluated lazily at the start of each download pass; there is no background
// timer.
func (s *Store) WakeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE videos SET state = ?, sleep_until = NULL, updated_at = ?
         WHERE state = ? AND sleep_until <= ?`,
		StateNew,
		time.Now().UTC().Format(time.RFC3339Nano),
		StateSleeping,
		now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("wake expired: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) transition(ctx context.Context, id string, to State, from []State, apply func(tx *sql.Tx, now string) error) (*Video, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT state FROM videos WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("video %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read state: %w", err)
		}

		allowed := false
		for _, state := range from {
			if State(current) == state {
				allowed = true
				break
			}
		}
		if !allowed {
			return &TransitionError{VideoID: id, From: State(current), To: to}
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		if err := apply(tx, now); err != nil {
			return fmt.Errorf("apply transition: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.VideoByID(ctx, id)
}
