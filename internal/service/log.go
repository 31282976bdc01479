// Package service implements the log query business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/booklog/booklog/internal/metrics"
	"github.com/booklog/booklog/internal/model"
	"github.com/booklog/booklog/internal/repository"
)

// Validation errors surfaced to the boundary as user-correctable input
// problems.
var (
	ErrMissingTitle  = errors.New("title is required")
	ErrMissingAuthor = errors.New("author is required")
	ErrInvalidISBN   = errors.New("isbn must be an integer")
	ErrInvalidRating = errors.New("rating must be an integer")
)

// LogStore is the persistence interface the service needs.
// *repository.Repository satisfies it.
type LogStore interface {
	CreateLog(ctx context.Context, entry *model.LogEntry) error
	GetLogByID(ctx context.Context, id string) (*model.LogEntry, error)
	ListLogsByOwner(ctx context.Context, ownerID string, sortKey model.SortKey) ([]*model.LogEntry, error)
	SearchLogs(ctx context.Context, ownerID, keyword string) ([]*model.LogEntry, error)
	LogStats(ctx context.Context, ownerID string) (*model.StatSummary, error)
	ReplaceLog(ctx context.Context, entry *model.LogEntry) (*model.LogEntry, error)
	DeleteLog(ctx context.Context, id string) error
}

// LogInput carries raw entry fields from the boundary. ISBN and Rating
// arrive as strings and are validated as integers here; unparseable values
// fail validation instead of being coerced to a sentinel.
type LogInput struct {
	Title  string
	Author string
	ISBN   string
	Rating string
	Review string
	Notes  string
}

// LogService handles log entry operations.
type LogService struct {
	store    LogStore
	recorder metrics.Recorder
	entropy  *ulid.MonotonicEntropy
}

// NewLogService creates a new LogService.
func NewLogService(store LogStore, recorder metrics.Recorder) *LogService {
	return &LogService{
		store:    store,
		recorder: recorder,
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// ListByOwner returns an owner's entries under the requested ordering.
// Unknown sort keys fall back to reverse-chronological order.
func (s *LogService) ListByOwner(ctx context.Context, ownerID, rawSortKey string) ([]*model.LogEntry, error) {
	start := time.Now()
	entries, err := s.store.ListLogsByOwner(ctx, ownerID, model.ParseSortKey(rawSortKey))
	if err != nil {
		return nil, err
	}
	s.recorder.ObserveListDuration(time.Since(start))
	return entries, nil
}

// Get returns a single entry by ID.
func (s *LogService) Get(ctx context.Context, id string) (*model.LogEntry, error) {
	return s.store.GetLogByID(ctx, id)
}

// Search returns an owner's entries matching the keyword against review or
// notes. An empty keyword matches all of the owner's entries.
func (s *LogService) Search(ctx context.Context, ownerID, keyword string) ([]*model.LogEntry, error) {
	return s.store.SearchLogs(ctx, ownerID, strings.TrimSpace(keyword))
}

// Stats returns the owner's aggregate reading summary.
func (s *LogService) Stats(ctx context.Context, ownerID string) (*model.StatSummary, error) {
	return s.store.LogStats(ctx, ownerID)
}

// Create validates and stores a new entry for the owner.
// A duplicate title surfaces as repository.ErrDuplicateTitle.
func (s *LogService) Create(ctx context.Context, ownerID string, input LogInput) (*model.LogEntry, error) {
	entry, err := s.buildEntry(ownerID, input)
	if err != nil {
		return nil, err
	}

	entry.ID = ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
	entry.CreatedAt = time.Now()

	if err := s.store.CreateLog(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicateTitle) {
			s.recorder.IncLogConflict()
		}
		return nil, err
	}

	s.recorder.IncLogCreated()
	return entry, nil
}

// Replace overwrites every mutable field of an existing entry with the
// supplied values. Fields missing from input become null; there is no
// merge with the stored record.
func (s *LogService) Replace(ctx context.Context, id string, input LogInput) (*model.LogEntry, error) {
	entry, err := s.buildEntry("", input)
	if err != nil {
		return nil, err
	}
	entry.ID = id

	updated, err := s.store.ReplaceLog(ctx, entry)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateTitle) {
			s.recorder.IncLogConflict()
		}
		return nil, err
	}

	s.recorder.IncLogReplaced()
	return updated, nil
}

// Delete removes an entry by ID.
func (s *LogService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteLog(ctx, id); err != nil {
		return err
	}
	s.recorder.IncLogDeleted()
	return nil
}

// buildEntry validates raw input into a LogEntry.
func (s *LogService) buildEntry(ownerID string, input LogInput) (*model.LogEntry, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrMissingTitle
	}
	author := strings.TrimSpace(input.Author)
	if author == "" {
		return nil, ErrMissingAuthor
	}

	isbn, err := strconv.ParseInt(strings.TrimSpace(input.ISBN), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidISBN, input.ISBN)
	}

	entry := &model.LogEntry{
		OwnerID: ownerID,
		Title:   title,
		Author:  author,
		ISBN:    isbn,
	}

	if raw := strings.TrimSpace(input.Rating); raw != "" {
		rating, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRating, input.Rating)
		}
		entry.Rating = &rating
	}

	if input.Review != "" {
		review := input.Review
		entry.Review = &review
	}
	if input.Notes != "" {
		notes := input.Notes
		entry.Notes = &notes
	}

	return entry, nil
}

// IsValidationError reports whether err belongs to the input validation
// class, for boundary status mapping.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingTitle) ||
		errors.Is(err, ErrMissingAuthor) ||
		errors.Is(err, ErrInvalidISBN) ||
		errors.Is(err, ErrInvalidRating)
}
