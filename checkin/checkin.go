// Package checkin owns the daily check-in slice of client state: task
// completion, check-in records, and streak statistics.
//
// Completion toggles are optimistic. The local day entry is mutated through
// the task store's pure transforms before the confirming call, so the toggle
// and its inverse are the only two states the entry can be in.
package checkin

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/weighthabit/habitsync/gateway"
	"github.com/weighthabit/habitsync/model"
	"github.com/weighthabit/habitsync/tasks"
)

// CompletionRequest describes a task completion.
type CompletionRequest struct {
	TaskID   string `json:"task_id"`
	Note     string `json:"note,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// RecordFilter narrows a check-in record fetch.
type RecordFilter struct {
	StartDate string
	EndDate   string
	Page      int
	Limit     int
}

// Store is the check-in domain store.
type Store struct {
	gw     *gateway.Client
	tasks  *tasks.Store
	logger *slog.Logger

	mu       sync.Mutex
	records  []model.CheckIn
	stats    *model.CheckInStats
	loading  bool
	lastErr  string
	rollback bool
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithRollback enables automatic reversal of the optimistic completion
// toggle when the confirming server call fails.
func WithRollback(enabled bool) Option {
	return func(s *Store) { s.rollback = enabled }
}

// New creates a check-in store. The task store receives the completion
// transforms so both stores render the same day entry.
func New(gw *gateway.Client, taskStore *tasks.Store, opts ...Option) *Store {
	s := &Store{gw: gw, tasks: taskStore}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Records returns a copy of the cached check-in records.
func (s *Store) Records() []model.CheckIn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CheckIn(nil), s.records...)
}

// Stats returns the cached statistics snapshot, or nil before the first
// successful fetch.
func (s *Store) Stats() *model.CheckInStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats == nil {
		return nil
	}
	copied := *s.stats
	return &copied
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// ErrorMessage returns the user-presentable message from the most recent
// failed operation, or "".
func (s *Store) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// CompleteTask marks the task completed for the active date, optimistically
// on the local day entry and then on the server. The server's check-in
// record, when one is returned, replaces the matching cached record.
func (s *Store) CompleteTask(ctx context.Context, req CompletionRequest) (model.CheckIn, error) {
	s.begin()

	date := s.tasks.ActiveDate()
	applied := s.tasks.ApplyCompletion(date, req.TaskID, model.Today())

	record, err := gateway.Do[model.CheckIn](ctx, s.gw, http.MethodPost, "/checkin/complete", req, nil)
	if err != nil {
		if applied && s.rollback {
			s.tasks.ApplyUncompletion(date, req.TaskID)
		}
		s.finishErr(err)
		return model.CheckIn{}, err
	}

	s.mu.Lock()
	s.upsertRecordLocked(record)
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return record, nil
}

// UncompleteTask reverses a completion for the active date.
func (s *Store) UncompleteTask(ctx context.Context, taskID string) error {
	s.begin()

	date := s.tasks.ActiveDate()
	applied := s.tasks.ApplyUncompletion(date, taskID)

	body := map[string]any{"task_id": taskID}
	_, err := s.gw.Request(ctx, http.MethodPost, "/checkin/uncomplete", body, nil)
	if err != nil {
		if applied && s.rollback {
			s.tasks.ApplyCompletion(date, taskID, model.Today())
		}
		s.finishErr(err)
		return err
	}

	s.finishOK()
	return nil
}

// FetchRecords loads a page of check-in records, replacing the cached
// records wholesale on success.
func (s *Store) FetchRecords(ctx context.Context, filter RecordFilter) (model.Page[model.CheckIn], error) {
	s.begin()

	query := url.Values{}
	if filter.StartDate != "" {
		query.Set("start_date", filter.StartDate)
	}
	if filter.EndDate != "" {
		query.Set("end_date", filter.EndDate)
	}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	page, err := gateway.Do[model.Page[model.CheckIn]](ctx, s.gw, http.MethodGet, "/checkin/records", nil, query)
	if err != nil {
		s.finishErr(err)
		return model.Page[model.CheckIn]{}, err
	}

	s.mu.Lock()
	s.records = page.Data
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return page, nil
}

// FetchStats loads the check-in statistics snapshot. The snapshot is cached
// as-is and never derived or mutated locally.
func (s *Store) FetchStats(ctx context.Context) (model.CheckInStats, error) {
	s.begin()

	stats, err := gateway.Do[model.CheckInStats](ctx, s.gw, http.MethodGet, "/checkin/stats", nil, nil)
	if err != nil {
		s.finishErr(err)
		return model.CheckInStats{}, err
	}

	s.mu.Lock()
	s.stats = &stats
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return stats, nil
}

// FetchStreak loads current streak info and patches exactly the two streak
// fields of the cached statistics snapshot. The remaining fields keep their
// last fetched values.
func (s *Store) FetchStreak(ctx context.Context) (model.StreakInfo, error) {
	s.begin()

	streak, err := gateway.Do[model.StreakInfo](ctx, s.gw, http.MethodGet, "/checkin/streak", nil, nil)
	if err != nil {
		s.finishErr(err)
		return model.StreakInfo{}, err
	}

	s.mu.Lock()
	if s.stats != nil {
		s.stats.CurrentStreak = streak.CurrentStreak
		s.stats.MaxStreak = streak.MaxStreak
	}
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return streak, nil
}

// MakeupCheckin spends a make-up allowance to record a check-in for a past
// date. The returned record replaces any cached record for that date.
func (s *Store) MakeupCheckin(ctx context.Context, date string) (model.CheckIn, error) {
	s.begin()

	body := map[string]any{"date": date}
	record, err := gateway.Do[model.CheckIn](ctx, s.gw, http.MethodPost, "/checkin/makeup", body, nil)
	if err != nil {
		s.finishErr(err)
		return model.CheckIn{}, err
	}

	s.mu.Lock()
	s.upsertRecordLocked(record)
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return record, nil
}

// upsertRecordLocked replaces the cached record for the same date, or
// prepends the record when none exists. Callers hold s.mu.
func (s *Store) upsertRecordLocked(record model.CheckIn) {
	if record.ID == "" && record.Date == "" {
		return
	}
	for i := range s.records {
		if s.records[i].Date == record.Date {
			s.records[i] = record
			return
		}
	}
	s.records = append([]model.CheckIn{record}, s.records...)
}

func (s *Store) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = true
	s.lastErr = ""
}

func (s *Store) finishOK() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.lastErr = ""
}

func (s *Store) finishErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.lastErr = gateway.KindOf(err).Message()
}
