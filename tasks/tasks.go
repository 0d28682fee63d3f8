// Package tasks owns the normalized daily-task slice of client state: the
// per-day task set, keyed by (user, date) with explicit eviction when the
// active date changes, and the task library.
//
// Fetches follow a three-phase contract: mark loading, call the gateway, and
// on success replace the relevant collection wholesale. On failure the
// previous collection is left untouched; stale-but-present beats empty on a
// transient failure.
package tasks

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/weighthabit/habitsync/gateway"
	"github.com/weighthabit/habitsync/model"
	"github.com/weighthabit/habitsync/storage"
)

// cachedTaskTTL bounds how long the mirrored active-day task set stays
// usable across restarts before a fresh fetch is forced.
const cachedTaskTTL = 24 * time.Hour

// LibraryFilter narrows a task-library fetch.
type LibraryFilter struct {
	Category   string
	Difficulty string
	Page       int
	Limit      int
}

// HistoryFilter narrows a task-history fetch.
type HistoryFilter struct {
	StartDate string
	EndDate   string
	Page      int
	Limit     int
}

// Stats is the server-derived task statistics read-model.
type Stats struct {
	Period     string            `json:"period"`
	Overall    json.RawMessage   `json:"overall"`
	ByCategory []json.RawMessage `json:"by_category"`
}

// Store is the task domain store.
type Store struct {
	gw     *gateway.Client
	local  storage.Store
	logger *slog.Logger

	mu         sync.Mutex
	userID     string
	activeDate string
	days       map[string][]model.DailyTask // keyed userID|date
	library    []model.Task
	loading    bool
	lastErr    string
	rollback   bool
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithRollback enables automatic restoration of the pre-mutation state when
// the confirming server call after an optimistic selection fails. Disabled by
// default, matching the historical behavior where the caller re-fetches.
func WithRollback(enabled bool) Option {
	return func(s *Store) { s.rollback = enabled }
}

// New creates a task store.
func New(gw *gateway.Client, local storage.Store, opts ...Option) *Store {
	s := &Store{
		gw:         gw,
		local:      local,
		activeDate: model.Today(),
		days:       make(map[string][]model.DailyTask),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func dayKey(userID, date string) string {
	return userID + "|" + date
}

// SetUser switches the owning user and drops every cached day: day entries
// are keyed by (user, date) and never shared across users.
func (s *Store) SetUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID != s.userID {
		s.userID = userID
		s.days = make(map[string][]model.DailyTask)
	}
}

// SetDate switches the active date and evicts day entries for every other
// date. The replacement policy is explicit: at most one day per user is held.
func (s *Store) SetDate(date string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeDate = date
	keep := dayKey(s.userID, date)
	for k := range s.days {
		if k != keep {
			delete(s.days, k)
		}
	}
}

// ActiveDate returns the date currently displayed.
func (s *Store) ActiveDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeDate
}

// Daily returns a copy of the cached task set for the date, or nil when the
// date has not been fetched.
func (s *Store) Daily(date string) []model.DailyTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.DailyTask(nil), s.days[dayKey(s.userID, date)]...)
}

// Library returns a copy of the cached task library.
func (s *Store) Library() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Task(nil), s.library...)
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

// FetchDaily loads the task set for the date, replacing the cached day
// wholesale on success. An empty date means the active date.
func (s *Store) FetchDaily(ctx context.Context, date string) ([]model.DailyTask, error) {
	if date == "" {
		date = s.ActiveDate()
	}
	s.begin()

	query := url.Values{}
	query.Set("date", date)
	sel, err := gateway.Do[model.TaskSelection](ctx, s.gw, http.MethodGet, "/tasks/daily", nil, query)
	if err != nil {
		s.finishErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.days[dayKey(s.userID, date)] = sel.Tasks
	s.loading = false
	s.lastErr = ""
	active := date == s.activeDate
	s.mu.Unlock()

	if active {
		s.mirrorActiveDay(sel)
	}
	return append([]model.DailyTask(nil), sel.Tasks...), nil
}

// mirrorActiveDay persists the active day's task set so the next process
// start can render without a network call.
func (s *Store) mirrorActiveDay(sel model.TaskSelection) {
	if s.local == nil {
		return
	}
	if err := storage.SetCached(s.local, storage.KeyCachedTasks, sel, cachedTaskTTL); err != nil && s.logger != nil {
		s.logger.Warn("mirroring task set failed", slog.String("error", err.Error()))
	}
}

// RestoreCachedDay loads the persisted active-day task set, if one is present
// and unexpired.
func (s *Store) RestoreCachedDay() ([]model.DailyTask, bool) {
	if s.local == nil {
		return nil, false
	}
	var sel model.TaskSelection
	if err := storage.GetCached(s.local, storage.KeyCachedTasks, &sel); err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sel.Date != s.activeDate {
		return nil, false
	}
	s.days[dayKey(s.userID, sel.Date)] = sel.Tasks
	return append([]model.DailyTask(nil), sel.Tasks...), true
}

// SelectTasks submits the full selected set for the date. Selection is a
// replacement set, not incremental add/remove: each task's IsSelected flag is
// recomputed from membership of the submitted ids, never toggled per entry.
// The membership is applied optimistically before the call.
func (s *Store) SelectTasks(ctx context.Context, date string, taskIDs []string) error {
	if date == "" {
		date = s.ActiveDate()
	}
	if len(taskIDs) > model.MaxSelectedTasks {
		err := &gateway.Error{Kind: gateway.KindValidation, Message: "at most " + strconv.Itoa(model.MaxSelectedTasks) + " tasks can be selected per day"}
		s.mu.Lock()
		s.lastErr = gateway.KindOf(err).Message()
		s.mu.Unlock()
		return err
	}

	s.begin()

	// Optimistic: recompute membership before confirmation.
	prior := s.applySelection(date, taskIDs)

	body := map[string]any{"task_ids": taskIDs, "date": date}
	_, err := s.gw.Request(ctx, http.MethodPost, "/tasks/select", body, nil)
	if err != nil {
		if s.rollback {
			s.restoreDay(date, prior)
		}
		s.finishErr(err)
		return err
	}

	s.finishOK()
	return nil
}

// applySelection recomputes IsSelected from set membership and returns the
// prior day entry for rollback. Deselected tasks lose their completion, since
// a task cannot stay completed without being selected.
func (s *Store) applySelection(date string, taskIDs []string) []model.DailyTask {
	selected := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		selected[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := dayKey(s.userID, date)
	prior := append([]model.DailyTask(nil), s.days[key]...)
	day := s.days[key]
	for i := range day {
		day[i].IsSelected = selected[day[i].TaskID]
		if !day[i].IsSelected && day[i].IsCompleted {
			day[i].IsCompleted = false
			day[i].CompletedAt = ""
		}
	}
	return prior
}

func (s *Store) restoreDay(date string, prior []model.DailyTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days[dayKey(s.userID, date)] = prior
}

// FetchLibrary loads a page of the task library, replacing the cached
// library wholesale on success.
func (s *Store) FetchLibrary(ctx context.Context, filter LibraryFilter) (model.Page[model.Task], error) {
	s.begin()

	query := url.Values{}
	if filter.Category != "" {
		query.Set("category", filter.Category)
	}
	if filter.Difficulty != "" {
		query.Set("difficulty", filter.Difficulty)
	}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	page, err := gateway.Do[model.Page[model.Task]](ctx, s.gw, http.MethodGet, "/tasks/library", nil, query)
	if err != nil {
		s.finishErr(err)
		return model.Page[model.Task]{}, err
	}

	s.mu.Lock()
	s.library = page.Data
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return page, nil
}

// FetchTask loads one task definition, refreshing its library entry in place
// when present.
func (s *Store) FetchTask(ctx context.Context, taskID string) (model.Task, error) {
	s.begin()

	task, err := gateway.Do[model.Task](ctx, s.gw, http.MethodGet, "/tasks/"+taskID, nil, nil)
	if err != nil {
		s.finishErr(err)
		return model.Task{}, err
	}

	s.mu.Lock()
	for i := range s.library {
		if s.library[i].ID == task.ID {
			s.library[i] = task
			break
		}
	}
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return task, nil
}

// FetchHistory loads a page of past daily tasks.
func (s *Store) FetchHistory(ctx context.Context, filter HistoryFilter) (model.Page[model.DailyTask], error) {
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

	page, err := gateway.Do[model.Page[model.DailyTask]](ctx, s.gw, http.MethodGet, "/tasks/history", nil, query)
	if err != nil {
		s.finishErr(err)
		return model.Page[model.DailyTask]{}, err
	}
	s.finishOK()
	return page, nil
}

// FetchStats loads completion statistics for the period.
func (s *Store) FetchStats(ctx context.Context, period string) (Stats, error) {
	s.begin()

	query := url.Values{}
	if period != "" {
		query.Set("period", period)
	}
	stats, err := gateway.Do[Stats](ctx, s.gw, http.MethodGet, "/tasks/stats", nil, query)
	if err != nil {
		s.finishErr(err)
		return Stats{}, err
	}
	s.finishOK()
	return stats, nil
}

// ApplyCompletion marks the task completed on the date's cached entry. It is
// a pure local transform, reversed by ApplyUncompletion. It refuses tasks
// that are not selected: completion implies selection.
func (s *Store) ApplyCompletion(date, taskID, completedAt string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := s.days[dayKey(s.userID, date)]
	for i := range day {
		if day[i].TaskID == taskID {
			if !day[i].IsSelected {
				return false
			}
			day[i].IsCompleted = true
			day[i].CompletedAt = completedAt
			return true
		}
	}
	return false
}

// ApplyUncompletion clears the task's completion on the date's cached entry.
func (s *Store) ApplyUncompletion(date, taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := s.days[dayKey(s.userID, date)]
	for i := range day {
		if day[i].TaskID == taskID {
			day[i].IsCompleted = false
			day[i].CompletedAt = ""
			return true
		}
	}
	return false
}

// begin marks loading and clears the previous error so failures never
// persist across unrelated operations.
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
