package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/booklog/booklog/internal/model"
)

// Common errors for log repository operations.
var (
	ErrLogNotFound    = errors.New("log entry not found")
	ErrDuplicateTitle = errors.New("title already logged for owner")
)

const logColumns = "id, owner_id, title, author, isbn, created_at, rating, review, notes"

// CreateLog inserts a new log entry.
// A duplicate title for the same owner maps to ErrDuplicateTitle.
func (r *Repository) CreateLog(ctx context.Context, entry *model.LogEntry) error {
	query := `
		INSERT INTO logs (id, owner_id, title, author, isbn, created_at, rating, review, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.OwnerID,
		entry.Title,
		entry.Author,
		entry.ISBN,
		entry.CreatedAt,
		entry.Rating,
		entry.Review,
		entry.Notes,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTitle
		}
		return fmt.Errorf("failed to create log entry: %w", err)
	}

	return nil
}

// GetLogByID retrieves a single log entry.
func (r *Repository) GetLogByID(ctx context.Context, id string) (*model.LogEntry, error) {
	query := `SELECT ` + logColumns + ` FROM logs WHERE id = $1`

	entry, err := scanLog(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLogNotFound
		}
		return nil, fmt.Errorf("failed to get log by ID: %w", err)
	}

	return entry, nil
}

// ListLogsByOwner retrieves all of an owner's entries under the given
// ordering. The sort key is a closed enumeration; callers normalize raw
// input through model.ParseSortKey first.
func (r *Repository) ListLogsByOwner(ctx context.Context, ownerID string, sortKey model.SortKey) ([]*model.LogEntry, error) {
	query := `SELECT ` + logColumns + ` FROM logs WHERE owner_id = $1 ` + orderClause(sortKey)

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	return collectLogs(rows)
}

// SearchLogs retrieves an owner's entries whose review or notes contain the
// keyword, case-insensitively. An empty keyword matches every entry.
func (r *Repository) SearchLogs(ctx context.Context, ownerID, keyword string) ([]*model.LogEntry, error) {
	query := `
		SELECT ` + logColumns + `
		FROM logs
		WHERE owner_id = $1
		  AND (lower(coalesce(review, '')) LIKE '%' || lower($2) || '%'
		    OR lower(coalesce(notes, '')) LIKE '%' || lower($2) || '%')
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to search logs: %w", err)
	}
	defer rows.Close()

	return collectLogs(rows)
}

// LogStats returns the owner's entry count and the calendar year of their
// oldest entry. EarliestYear stays nil for an empty history.
func (r *Repository) LogStats(ctx context.Context, ownerID string) (*model.StatSummary, error) {
	stats := &model.StatSummary{}

	countQuery := `SELECT COUNT(*) FROM logs WHERE owner_id = $1`
	if err := r.pool.QueryRow(ctx, countQuery, ownerID).Scan(&stats.TotalCount); err != nil {
		return nil, fmt.Errorf("failed to count logs: %w", err)
	}

	if stats.TotalCount == 0 {
		return stats, nil
	}

	yearQuery := `
		SELECT EXTRACT(YEAR FROM created_at)::int
		FROM logs
		WHERE owner_id = $1
		ORDER BY created_at
		LIMIT 1
	`
	var year int
	if err := r.pool.QueryRow(ctx, yearQuery, ownerID).Scan(&year); err != nil {
		// An entry may have been deleted between the two reads.
		if errors.Is(err, pgx.ErrNoRows) {
			stats.TotalCount = 0
			return stats, nil
		}
		return nil, fmt.Errorf("failed to get earliest log year: %w", err)
	}
	stats.EarliestYear = &year

	return stats, nil
}

// ReplaceLog overwrites every mutable field of a log entry.
// Fields absent from entry null out the stored values; there is no merge.
func (r *Repository) ReplaceLog(ctx context.Context, entry *model.LogEntry) (*model.LogEntry, error) {
	query := `
		UPDATE logs
		SET title = $2, author = $3, isbn = $4, rating = $5, review = $6, notes = $7
		WHERE id = $1
		RETURNING ` + logColumns

	updated, err := scanLog(r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.Title,
		entry.Author,
		entry.ISBN,
		entry.Rating,
		entry.Review,
		entry.Notes,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLogNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateTitle
		}
		return nil, fmt.Errorf("failed to replace log entry: %w", err)
	}

	return updated, nil
}

// DeleteLog removes a log entry.
func (r *Repository) DeleteLog(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM logs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete log entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLogNotFound
	}

	return nil
}

// orderClause maps a sort key to its ORDER BY clause.
func orderClause(sortKey model.SortKey) string {
	switch sortKey {
	case model.SortByTitle:
		return "ORDER BY lower(title)"
	case model.SortByAuthor:
		return "ORDER BY lower(author)"
	case model.SortByRating:
		return "ORDER BY rating DESC NULLS LAST"
	default:
		return "ORDER BY created_at DESC"
	}
}

// scanLog reads one log row.
func scanLog(row pgx.Row) (*model.LogEntry, error) {
	var entry model.LogEntry
	err := row.Scan(
		&entry.ID,
		&entry.OwnerID,
		&entry.Title,
		&entry.Author,
		&entry.ISBN,
		&entry.CreatedAt,
		&entry.Rating,
		&entry.Review,
		&entry.Notes,
	)
	return &entry, err
}

// collectLogs drains rows into a slice.
func collectLogs(rows pgx.Rows) ([]*model.LogEntry, error) {
	var entries []*model.LogEntry
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating logs: %w", err)
	}

	return entries, nil
}
