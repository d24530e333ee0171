package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// mutation describes one compare-and-set row update.
type mutation struct {
	from  []Status
	to    Status
	set   []string
	args  []any
	where string
}

func (s *Store) apply(ctx context.Context, id string, m mutation) error {
	for _, from := range m.from {
		if !CanTransition(from, m.to) {
			return fmt.Errorf("tasks: illegal transition %s -> %s", from, m.to)
		}
	}
	assignments := append([]string{"status = ?", "legacy_status = ?"}, m.set...)
	args := append([]any{string(m.to), m.to.Legacy()}, m.args...)
	args = append(args, id)
	args = append(args, statusArgs(m.from)...)

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = ? AND status IN (%s)",
		strings.Join(assignments, ", "), placeholders(len(m.from)))
	if m.where != "" {
		query += " AND " + m.where
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task %s to %s: %w", id, m.to, err)
	}
	return s.checkAffected(ctx, res, id, string(m.to))
}

func (s *Store) checkAffected(ctx context.Context, res interface{ RowsAffected() (int64, error) }, id, target string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fmt.Errorf("%w: task %s is %s, cannot move to %s", ErrConflict, id, current.Status, target)
}

// MarkUploaded records the storage key written by the transfer stage. The key is
// set at most once.
func (s *Store) MarkUploaded(ctx context.Context, id, storagePath string) error {
	if strings.TrimSpace(storagePath) == "" {
		return fmt.Errorf("%w: storage path is required", ErrInvalid)
	}
	return s.apply(ctx, id, mutation{
		from:  []Status{StatusUploadPending},
		to:    StatusUploaded,
		set:   []string{"storage_path = ?", "error_message = NULL"},
		args:  []any{storagePath},
		where: "storage_path IS NULL",
	})
}

// MarkUploadFailed records a transfer failure without touching storage_path.
func (s *Store) MarkUploadFailed(ctx context.Context, id, message string) error {
	return s.apply(ctx, id, mutation{
		from: []Status{StatusUploadPending, StatusUploaded},
		to:   StatusUploadFailed,
		set:  []string{"error_message = ?"},
		args: []any{failureMessage(message)},
	})
}

// BeginProcessing claims an uploaded task for the orchestrator.
func (s *Store) BeginProcessing(ctx context.Context, id string) error {
	return s.apply(ctx, id, mutation{
		from:  []Status{StatusUploaded},
		to:    StatusProcessing,
		set:   []string{"error_message = NULL"},
		where: "storage_path IS NOT NULL",
	})
}

// SaveTranscript checkpoints the transcription result.
func (s *Store) SaveTranscript(ctx context.Context, id, transcript string) error {
	if strings.TrimSpace(transcript) == "" {
		return fmt.Errorf("%w: transcript is empty", ErrInvalid)
	}
	return s.apply(ctx, id, mutation{
		from: []Status{StatusProcessing},
		to:   StatusTranscribed,
		set:  []string{"transcription_result = ?"},
		args: []any{transcript},
	})
}

// SaveSummary checkpoints the serialized structured summary.
func (s *Store) SaveSummary(ctx context.Context, id, summaryJSON string) error {
	if strings.TrimSpace(summaryJSON) == "" {
		return fmt.Errorf("%w: summary is empty", ErrInvalid)
	}
	return s.apply(ctx, id, mutation{
		from:  []Status{StatusTranscribed},
		to:    StatusSummarized,
		set:   []string{"summary_result = ?"},
		args:  []any{summaryJSON},
		where: "transcription_result IS NOT NULL",
	})
}

// Complete records the publish outcome and the terminal success timestamp.
func (s *Store) Complete(ctx context.Context, id string, result PublishResult) error {
	var errorMessage any
	if len(result.Failures) > 0 {
		errorMessage = "publish: " + strings.Join(result.Failures, "; ")
	}
	return s.apply(ctx, id, mutation{
		from: []Status{StatusSummarized},
		to:   result.Status(),
		set: []string{
			"notion_page_id = ?",
			"notion_page_url = ?",
			"error_message = ?",
			"processed_at = ?",
			"claim_token = NULL",
			"claim_expires_at = NULL",
		},
		args: []any{
			nullableString(strings.Join(result.PageIDs, ",")),
			nullableString(result.PageURL),
			errorMessage,
			formatTime(time.Now()),
		},
		where: "summary_result IS NOT NULL",
	})
}

// MarkFailed records a processing failure. Artifact columns are left untouched so
// the failed step stays recoverable from the last checkpoint.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	return s.apply(ctx, id, mutation{
		from: []Status{StatusProcessing, StatusTranscribed, StatusSummarized},
		to:   StatusFailed,
		set:  []string{"error_message = ?", "claim_token = NULL", "claim_expires_at = NULL"},
		args: []any{failureMessage(message)},
	})
}

// ReopenUpload moves an upload_failed task back into the transfer lane. Tasks whose
// bytes already reached storage resume as uploaded.
func (s *Store) ReopenUpload(ctx context.Context, id string) (Status, error) {
	res, err := s.execWithRetry(ctx, `UPDATE tasks SET
		status = CASE WHEN storage_path IS NULL THEN ? ELSE ? END,
		legacy_status = ?,
		error_message = NULL
		WHERE id = ? AND status = ?`,
		string(StatusUploadPending), string(StatusUploaded),
		StatusUploadPending.Legacy(),
		id, string(StatusUploadFailed),
	)
	if err != nil {
		return "", fmt.Errorf("reopen upload %s: %w", id, err)
	}
	if err := s.checkAffected(ctx, res, id, "upload lane"); err != nil {
		return "", err
	}
	return s.statusOf(ctx, id)
}

// ReopenFailed moves a failed task back to the checkpoint implied by its artifacts.
func (s *Store) ReopenFailed(ctx context.Context, id string) (Status, error) {
	res, err := s.execWithRetry(ctx, `UPDATE tasks SET
		status = CASE
			WHEN summary_result IS NOT NULL THEN ?
			WHEN transcription_result IS NOT NULL THEN ?
			ELSE ?
		END,
		legacy_status = ?,
		error_message = NULL
		WHERE id = ? AND status = ?`,
		string(StatusSummarized), string(StatusTranscribed), string(StatusProcessing),
		StatusProcessing.Legacy(),
		id, string(StatusFailed),
	)
	if err != nil {
		return "", fmt.Errorf("reopen failed %s: %w", id, err)
	}
	if err := s.checkAffected(ctx, res, id, "processing checkpoint"); err != nil {
		return "", err
	}
	return s.statusOf(ctx, id)
}

// processingLane lists the statuses a processing claim may be taken in.
var processingLane = []Status{StatusUploaded, StatusProcessing, StatusTranscribed, StatusSummarized}

// Claim takes the processing claim for token until ttl elapses. Re-claiming with
// the same token extends it; an unexpired claim held by another token yields
// ErrClaimed.
func (s *Store) Claim(ctx context.Context, id, token string, ttl time.Duration) error {
	if strings.TrimSpace(token) == "" || ttl <= 0 {
		return fmt.Errorf("%w: claim needs a token and a positive ttl", ErrInvalid)
	}
	now := time.Now()
	args := []any{token, now.Add(ttl).UnixNano(), id}
	args = append(args, statusArgs(processingLane)...)
	args = append(args, token, now.UnixNano())
	res, err := s.execWithRetry(ctx, fmt.Sprintf(`UPDATE tasks SET claim_token = ?, claim_expires_at = ?
		WHERE id = ? AND status IN (%s)
		AND (claim_token IS NULL OR claim_token = ? OR claim_expires_at IS NULL OR claim_expires_at <= ?)`,
		placeholders(len(processingLane))), args...)
	if err != nil {
		return fmt.Errorf("claim task %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for _, status := range processingLane {
		if current.Status == status {
			return fmt.Errorf("%w: %s until %s", ErrClaimed, id, current.ClaimedUntil.Format(time.RFC3339))
		}
	}
	return fmt.Errorf("%w: task %s is %s, cannot be claimed", ErrConflict, id, current.Status)
}

// Release drops the claim if token still holds it.
func (s *Store) Release(ctx context.Context, id, token string) error {
	if _, err := s.execWithRetry(ctx,
		"UPDATE tasks SET claim_token = NULL, claim_expires_at = NULL WHERE id = ? AND claim_token = ?",
		id, token,
	); err != nil {
		return fmt.Errorf("release task %s: %w", id, err)
	}
	return nil
}

func (s *Store) statusOf(ctx context.Context, id string) (Status, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if task == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return task.Status, nil
}

func failureMessage(message string) string {
	if trimmed := strings.TrimSpace(message); trimmed != "" {
		return trimmed
	}
	return "unknown failure"
}
