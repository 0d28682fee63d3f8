// Package model defines the wire and client-state types shared across the
// habitsync stores. JSON tags match the snake_case format of the WeightHabit
// REST API.
package model

import "time"

// MaxSelectedTasks is the server-enforced cap on tasks selected for a single
// day, mirrored optimistically on the client.
const MaxSelectedTasks = 3

// DateFormat is the calendar-day format used for date-keyed collections.
const DateFormat = "2006-01-02"

// Today returns the current calendar day in the user's local timezone.
func Today() string {
	return time.Now().Format(DateFormat)
}

// User is the account profile as reported by the server.
type User struct {
	ID                 string   `json:"id"`
	Phone              string   `json:"phone,omitempty"`
	Email              string   `json:"email,omitempty"`
	Nickname           string   `json:"nickname"`
	Avatar             string   `json:"avatar,omitempty"`
	Gender             string   `json:"gender,omitempty"`
	Age                int      `json:"age,omitempty"`
	CurrentWeight      float64  `json:"current_weight,omitempty"`
	TargetWeight       float64  `json:"target_weight,omitempty"`
	TargetDate         string   `json:"target_date,omitempty"`
	ExerciseLevel      string   `json:"exercise_level,omitempty"`
	DietaryPreferences []string `json:"dietary_preferences,omitempty"`
	SleepTime          string   `json:"sleep_time,omitempty"`
	WakeTime           string   `json:"wake_time,omitempty"`
	IsActive           bool     `json:"is_active"`
	CreatedAt          string   `json:"created_at,omitempty"`
	UpdatedAt          string   `json:"updated_at,omitempty"`
}

// UserStats is the aggregate profile read-model.
type UserStats struct {
	TotalCheckins       int     `json:"total_checkins"`
	CurrentStreak       int     `json:"current_streak"`
	MaxStreak           int     `json:"max_streak"`
	TotalTasksCompleted int     `json:"total_tasks_completed"`
	TotalPoints         int     `json:"total_points"`
	WeightLoss          float64 `json:"weight_loss"`
	AchievementsCount   int     `json:"achievements_count"`
	FriendsCount        int     `json:"friends_count"`
}

// Task is a library task definition.
type Task struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	Category        string `json:"category"`
	Difficulty      string `json:"difficulty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Calories        int    `json:"calories,omitempty"`
	Icon            string `json:"icon,omitempty"`
	IsActive        bool   `json:"is_active"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// DailyTask binds a library task to a user and calendar day.
//
// IsCompleted implies IsSelected: a task cannot be completed without having
// been selected for that date.
type DailyTask struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	TaskID      string `json:"task_id"`
	Task        *Task  `json:"task,omitempty"`
	Date        string `json:"date"`
	IsSelected  bool   `json:"is_selected"`
	IsCompleted bool   `json:"is_completed"`
	CompletedAt string `json:"completed_at,omitempty"`
	Note        string `json:"note,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// TaskSelection is the payload returned by GET /tasks/daily.
type TaskSelection struct {
	Tasks         []DailyTask `json:"tasks"`
	Date          string      `json:"date"`
	SelectedCount int         `json:"selected_count"`
}

// CheckIn is one day's check-in record.
type CheckIn struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Date           string `json:"date"`
	TasksCompleted int    `json:"tasks_completed"`
	TasksSelected  int    `json:"tasks_selected"`
	StreakDays     int    `json:"streak_days"`
	PointsEarned   int    `json:"points_earned"`
	TotalPoints    int    `json:"total_points"`
	CreatedAt      string `json:"created_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// MonthlyCheckInStats is the month slice of CheckInStats.
type MonthlyCheckInStats struct {
	MonthlyCheckins    int `json:"monthly_checkins"`
	MonthlyPoints      int `json:"monthly_points"`
	MonthlyPerfectDays int `json:"monthly_perfect_days"`
}

// CheckInStats is the server-derived check-in aggregate. The client caches a
// snapshot and never mutates it locally, except for the two streak fields
// patched by a dedicated streak fetch.
type CheckInStats struct {
	TotalCheckins     int                 `json:"total_checkins"`
	CurrentStreak     int                 `json:"current_streak"`
	MaxStreak         int                 `json:"max_streak"`
	TotalPoints       int                 `json:"total_points"`
	AvgCompletionRate string              `json:"avg_completion_rate"`
	PerfectDays       int                 `json:"perfect_days"`
	Monthly           MonthlyCheckInStats `json:"monthly"`
}

// StreakInfo is returned by GET /checkin/streak.
type StreakInfo struct {
	CurrentStreak   int    `json:"current_streak"`
	MaxStreak       int    `json:"max_streak"`
	StreakStartDate string `json:"streak_start_date,omitempty"`
	StreakEndDate   string `json:"streak_end_date,omitempty"`
}

// WeightRecord is one logged weight measurement.
type WeightRecord struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	Weight       float64 `json:"weight"`
	Date         string  `json:"date"`
	Note         string  `json:"note,omitempty"`
	WeightChange float64 `json:"weight_change,omitempty"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

// Friend is a friendship edge; Status is pending, accepted, or blocked.
type Friend struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	FriendID    string `json:"friend_id"`
	Friend      *User  `json:"friend,omitempty"`
	Status      string `json:"status"`
	RequestedBy string `json:"requested_by"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// LeaderboardEntry is one row of a period leaderboard.
type LeaderboardEntry struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	User           *User  `json:"user,omitempty"`
	PeriodType     string `json:"period_type"`
	PeriodDate     string `json:"period_date"`
	Points         int    `json:"points"`
	Rank           int    `json:"rank,omitempty"`
	TasksCompleted int    `json:"tasks_completed"`
	StreakDays     int    `json:"streak_days"`
}

// MyRank is returned by GET /leaderboard/my-rank.
type MyRank struct {
	Rank   int `json:"rank"`
	Points int `json:"points"`
}

// Post is a social feed entry. LikesCount and IsLiked move together: the
// like toggle is a pure flip and its own inverse.
type Post struct {
	ID            string   `json:"id"`
	UserID        string   `json:"user_id"`
	User          *User    `json:"user,omitempty"`
	Content       string   `json:"content"`
	Images        []string `json:"images,omitempty"`
	PostType      string   `json:"post_type"`
	LikesCount    int      `json:"likes_count"`
	CommentsCount int      `json:"comments_count"`
	IsPublic      bool     `json:"is_public"`
	IsLiked       bool     `json:"is_liked"`
	CreatedAt     string   `json:"created_at,omitempty"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
}

// Comment is a post comment, optionally threaded via ParentID.
type Comment struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	User      *User  `json:"user,omitempty"`
	PostID    string `json:"post_id"`
	ParentID  string `json:"parent_id,omitempty"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// AppSettings is the locally persisted preferences blob.
type AppSettings struct {
	Notifications struct {
		Push           bool `json:"push"`
		Email          bool `json:"email"`
		DailyReminder  bool `json:"daily_reminder"`
		FriendActivity bool `json:"friend_activity"`
		Achievements   bool `json:"achievements"`
	} `json:"notifications"`
	Privacy struct {
		ProfileVisibility  string `json:"profile_visibility"`
		ActivityVisibility string `json:"activity_visibility"`
	} `json:"privacy"`
	Language string `json:"language,omitempty"`
}
