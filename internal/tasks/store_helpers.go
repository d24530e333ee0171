package tasks

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const taskColumns = "id, status, source_file_id, source_channel_id, source_url, storage_path, original_file_name, mimetype, filetype, meeting_date, consultant_name, client_name, transcription_result, summary_result, notion_page_id, notion_page_url, error_message, claim_expires_at, created_at, updated_at, processed_at"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id              string
		statusStr       string
		sourceFileID    sql.NullString
		sourceChannelID sql.NullString
		sourceURL       sql.NullString
		storagePath     sql.NullString
		originalName    string
		mimetype        sql.NullString
		filetype        sql.NullString
		meetingDate     sql.NullString
		consultant      sql.NullString
		client          sql.NullString
		transcript      sql.NullString
		summary         sql.NullString
		pageID          sql.NullString
		pageURL         sql.NullString
		errorMessage    sql.NullString
		claimExpires    sql.NullInt64
		createdRaw      string
		updatedRaw      string
		processedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&sourceFileID,
		&sourceChannelID,
		&sourceURL,
		&storagePath,
		&originalName,
		&mimetype,
		&filetype,
		&meetingDate,
		&consultant,
		&client,
		&transcript,
		&summary,
		&pageID,
		&pageURL,
		&errorMessage,
		&claimExpires,
		&createdRaw,
		&updatedRaw,
		&processedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:                  id,
		Status:              Status(statusStr),
		SourceFileID:        sourceFileID.String,
		SourceChannelID:     sourceChannelID.String,
		SourceURL:           sourceURL.String,
		StoragePath:         storagePath.String,
		OriginalFileName:    originalName,
		Mimetype:            mimetype.String,
		Filetype:            filetype.String,
		MeetingDate:         meetingDate.String,
		ConsultantName:      consultant.String,
		ClientName:          client.String,
		TranscriptionResult: transcript.String,
		SummaryResult:       summary.String,
		NotionPageID:        pageID.String,
		NotionPageURL:       pageURL.String,
		ErrorMessage:        errorMessage.String,
		CreatedAt:           parseTimeString(createdRaw),
		UpdatedAt:           parseTimeString(updatedRaw),
	}
	if claimExpires.Valid {
		task.ClaimedUntil = time.Unix(0, claimExpires.Int64).UTC()
	}
	if processedRaw.Valid {
		if ts := parseTimeString(processedRaw.String); !ts.IsZero() {
			task.ProcessedAt = &ts
		}
	}
	return task, nil
}

func scanTasks(rows *sql.Rows) ([]*Task, error) {
	defer rows.Close()
	var out []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
		return ts.UTC()
	}
	return time.Time{}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func statusArgs(statuses []Status) []any {
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, string(status))
	}
	return args
}
