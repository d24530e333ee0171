package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Create inserts a new task in upload_pending and returns it.
func (s *Store) Create(ctx context.Context, input NewTask) (*Task, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	task := &Task{
		ID:               uuid.NewString(),
		Status:           StatusUploadPending,
		SourceFileID:     input.SourceFileID,
		SourceChannelID:  input.SourceChannelID,
		SourceURL:        input.SourceURL,
		OriginalFileName: input.OriginalFileName,
		Mimetype:         input.Mimetype,
		Filetype:         input.Filetype,
		MeetingDate:      input.MeetingDate,
		ConsultantName:   input.ConsultantName,
		ClientName:       input.ClientName,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	_, err := s.execWithRetry(ctx, `INSERT INTO tasks (
		id, status, legacy_status, source_file_id, source_channel_id, source_url,
		original_file_name, mimetype, filetype, meeting_date, consultant_name, client_name,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		string(task.Status),
		task.Status.Legacy(),
		nullableString(task.SourceFileID),
		nullableString(task.SourceChannelID),
		nullableString(task.SourceURL),
		task.OriginalFileName,
		nullableString(task.Mimetype),
		nullableString(task.Filetype),
		nullableString(task.MeetingDate),
		nullableString(task.ConsultantName),
		nullableString(task.ClientName),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, input.SourceFileID)
		}
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// Get fetches a task by id. It returns (nil, nil) when the task does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// GetBySourceFile fetches the task created for a source platform file id.
func (s *Store) GetBySourceFile(ctx context.Context, fileID string) (*Task, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+taskColumns+" FROM tasks WHERE source_file_id = ?", fileID)
	task, err := scanTask(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task by source file %s: %w", fileID, err)
	}
	return task, nil
}

// List returns tasks newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks"
	var args []any
	if len(statuses) > 0 {
		query += " WHERE status IN (" + placeholders(len(statuses)) + ")"
		args = statusArgs(statuses)
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return scanTasks(rows)
}

// Stats returns task counts keyed by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}
