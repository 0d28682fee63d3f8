// Package session owns the authentication token and user identity. It is a
// state machine over Anonymous, Authenticating, Authenticated, and
// Refreshing, and is the only writer of the bearer token into the gateway:
// every transition that sets or clears the token updates the gateway in the
// same step, so session state and gateway token never diverge.
//
// The persistent key-value store is the durable owner of the token and user
// snapshot; the manager's in-memory state is a cache of it, restored on
// construction without a network call.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/weighthabit/habitsync/gateway"
	"github.com/weighthabit/habitsync/internal/textutil"
	"github.com/weighthabit/habitsync/model"
	"github.com/weighthabit/habitsync/storage"
)

// State is the session lifecycle state.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	Refreshing
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Credentials is the login request body. Either password or verification
// code accompanies a phone or email.
type Credentials struct {
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty"`
	Password         string `json:"password,omitempty"`
	VerificationCode string `json:"verification_code,omitempty"`
}

// Registration is the register request body.
type Registration struct {
	Phone              string   `json:"phone,omitempty"`
	Email              string   `json:"email,omitempty"`
	Nickname           string   `json:"nickname"`
	Password           string   `json:"password,omitempty"`
	Gender             string   `json:"gender,omitempty"`
	Age                int      `json:"age,omitempty"`
	CurrentWeight      float64  `json:"current_weight,omitempty"`
	TargetWeight       float64  `json:"target_weight,omitempty"`
	TargetDate         string   `json:"target_date,omitempty"`
	ExerciseLevel      string   `json:"exercise_level,omitempty"`
	DietaryPreferences []string `json:"dietary_preferences,omitempty"`
	SleepTime          string   `json:"sleep_time,omitempty"`
	WakeTime           string   `json:"wake_time,omitempty"`
}

// authPayload is the data field of every auth endpoint that issues a token.
type authPayload struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

// verifyPayload is the data field of POST /auth/verify-token.
type verifyPayload struct {
	User  model.User `json:"user"`
	Valid bool       `json:"valid"`
}

// Manager is the session manager.
type Manager struct {
	gw     *gateway.Client
	store  storage.Store
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	user    *model.User
	token   string
	lastErr string

	onUserChange func(userID string)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the structured logger for session transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithUserChangeHook registers fn to run whenever the signed-in user changes:
// with the user id on login or restore, with "" on any teardown. User-scoped
// caches hang their eviction off this hook. The hook runs outside the manager
// lock.
func WithUserChangeHook(fn func(userID string)) Option {
	return func(m *Manager) { m.onUserChange = fn }
}

// New creates a session manager and restores any persisted session from the
// store, pushing the restored token into the gateway.
func New(gw *gateway.Client, store storage.Store, opts ...Option) *Manager {
	m := &Manager{gw: gw, store: store, state: Anonymous}
	for _, opt := range opts {
		opt(m)
	}
	m.restore()
	return m
}

func (m *Manager) restore() {
	tokenBytes, err := m.store.Get(storage.KeyAuthToken)
	if err != nil {
		return
	}
	var user model.User
	if err := storage.GetJSON(m.store, storage.KeyUserData, &user); err != nil {
		// A token without its user snapshot is a partial write from an
		// earlier crash; treat the session as absent.
		_ = m.store.Delete(storage.KeyAuthToken)
		return
	}

	m.mu.Lock()
	m.token = string(tokenBytes)
	m.user = &user
	m.state = Authenticated
	m.gw.SetToken(m.token)
	m.logf("session restored", slog.String("user_id", user.ID))
	m.mu.Unlock()

	m.notifyUserChange(user.ID)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Authenticated reports whether a token is held.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != ""
}

// User returns a copy of the current user snapshot, or nil when anonymous.
func (m *Manager) User() *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// LastError returns the user-presentable message recorded by the most recent
// failed operation, or "" when the last operation succeeded.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Login authenticates with password or verification-code credentials.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*model.User, error) {
	return m.authenticate(ctx, "/auth/login", creds)
}

// Register creates an account and signs it in.
func (m *Manager) Register(ctx context.Context, reg Registration) (*model.User, error) {
	reg.Nickname = textutil.Normalize(reg.Nickname)
	return m.authenticate(ctx, "/auth/register", reg)
}

// LoginWithCode signs in with a phone number and one-time verification code.
func (m *Manager) LoginWithCode(ctx context.Context, phone, code string) (*model.User, error) {
	body := map[string]string{"phone": phone, "verification_code": code}
	return m.authenticate(ctx, "/auth/login-with-code", body)
}

// LoginWithWeChat signs in through the WeChat federated provider.
func (m *Manager) LoginWithWeChat(ctx context.Context, wechatCode string) (*model.User, error) {
	body := map[string]string{"wechat_code": wechatCode}
	return m.authenticate(ctx, "/auth/wechat-login", body)
}

// LoginWithApple signs in through the Apple federated provider.
func (m *Manager) LoginWithApple(ctx context.Context, identityToken string) (*model.User, error) {
	body := map[string]string{"apple_identity_token": identityToken}
	return m.authenticate(ctx, "/auth/apple-login", body)
}

// authenticate runs one Anonymous -> Authenticating -> Authenticated|Anonymous
// transition against the given auth endpoint.
func (m *Manager) authenticate(ctx context.Context, path string, body any) (*model.User, error) {
	m.begin(Authenticating)

	payload, err := gateway.Do[authPayload](ctx, m.gw, http.MethodPost, path, body, nil)
	if err != nil {
		m.fail(err)
		return nil, err
	}
	if err := m.commit(payload); err != nil {
		return nil, err
	}
	u := payload.User
	return &u, nil
}

// SendVerificationCode requests a one-time code for the phone number.
// It does not change session state.
func (m *Manager) SendVerificationCode(ctx context.Context, phone string) error {
	m.clearError()
	_, err := m.gw.Request(ctx, http.MethodPost, "/auth/send-verification", map[string]string{"phone": phone}, nil)
	if err != nil {
		m.recordError(err)
	}
	return err
}

// RefreshToken exchanges the current token for a fresh one. On failure the
// session is torn down unconditionally: a stale token must never remain
// reachable after a failed refresh.
func (m *Manager) RefreshToken(ctx context.Context) error {
	if !m.Authenticated() {
		return fmt.Errorf("no session to refresh")
	}
	m.begin(Refreshing)

	payload, err := gateway.Do[authPayload](ctx, m.gw, http.MethodPost, "/auth/refresh", nil, nil)
	if err != nil {
		m.teardown()
		m.recordError(err)
		return err
	}
	return m.commit(payload)
}

// VerifyToken asks the server whether the current token is still valid. An
// invalid result clears session state identically to logout.
func (m *Manager) VerifyToken(ctx context.Context) (bool, error) {
	if !m.Authenticated() {
		return false, fmt.Errorf("no session to verify")
	}
	m.clearError()

	payload, err := gateway.Do[verifyPayload](ctx, m.gw, http.MethodPost, "/auth/verify-token", nil, nil)
	if err != nil {
		m.teardown()
		m.recordError(err)
		return false, err
	}
	if !payload.Valid {
		m.teardown()
		return false, nil
	}
	m.mu.Lock()
	u := payload.User
	m.user = &u
	m.mu.Unlock()
	return true, nil
}

// Logout notifies the server best-effort and always tears down local state.
// A network failure during logout must not block local session teardown.
func (m *Manager) Logout(ctx context.Context) {
	if _, err := m.gw.Request(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		m.logf("server logout failed, clearing local session anyway",
			slog.String("kind", gateway.KindOf(err).String()))
	}
	m.teardown()
}

// ForceLogout tears down local session state without a server call. It is
// installed as the gateway's OnUnauthorized hook, so any 401 anywhere in the
// system ends the session through this single path.
func (m *Manager) ForceLogout() {
	m.teardown()
	m.mu.Lock()
	m.lastErr = gateway.KindUnauthorized.Message()
	m.mu.Unlock()
}

// ResetPassword resets the password gated by phone plus one-time code. It
// does not change session state.
func (m *Manager) ResetPassword(ctx context.Context, phone, code, newPassword string) error {
	m.clearError()
	body := map[string]string{
		"phone":             phone,
		"verification_code": code,
		"new_password":      newPassword,
	}
	_, err := m.gw.Request(ctx, http.MethodPost, "/auth/reset-password", body, nil)
	if err != nil {
		m.recordError(err)
	}
	return err
}

// SetUser replaces the in-memory user snapshot. It is a pure state commit;
// callers that want the change durable invoke SaveSnapshot afterwards as an
// explicit post-commit effect.
func (m *Manager) SetUser(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = &u
}

// SaveSnapshot persists the current user snapshot to the store.
func (m *Manager) SaveSnapshot() error {
	m.mu.Lock()
	user := m.user
	m.mu.Unlock()
	if user == nil {
		return fmt.Errorf("no user snapshot to save")
	}
	return storage.SetJSON(m.store, storage.KeyUserData, user)
}

// begin starts an operation: records the transitional state and clears the
// previous error so failures never persist across unrelated operations.
func (m *Manager) begin(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	m.lastErr = ""
}

// commit persists the issued session and then, in the same step, updates
// in-memory state and the gateway token. Persistence happens first so a
// successful login is durable before it is observable; a persistence failure
// leaves no partial writes behind.
func (m *Manager) commit(payload authPayload) error {
	if err := m.store.Set(storage.KeyAuthToken, []byte(payload.Token)); err != nil {
		m.abortPersist(err)
		return fmt.Errorf("persisting token: %w", err)
	}
	if err := storage.SetJSON(m.store, storage.KeyUserData, payload.User); err != nil {
		m.abortPersist(err)
		return fmt.Errorf("persisting user snapshot: %w", err)
	}

	m.mu.Lock()
	u := payload.User
	m.user = &u
	m.token = payload.Token
	m.state = Authenticated
	m.lastErr = ""
	m.gw.SetToken(payload.Token)
	m.logf("session established", slog.String("user_id", u.ID))
	m.mu.Unlock()

	m.notifyUserChange(u.ID)
	return nil
}

// abortPersist rolls back a partially persisted session and returns the
// manager to Anonymous.
func (m *Manager) abortPersist(cause error) {
	_ = m.store.Delete(storage.KeyAuthToken)
	_ = m.store.Delete(storage.KeyUserData)

	m.mu.Lock()
	m.user = nil
	m.token = ""
	m.state = Anonymous
	m.lastErr = gateway.KindUnknown.Message()
	m.gw.ClearToken()
	m.logf("session persist failed", slog.String("error", cause.Error()))
	m.mu.Unlock()

	m.notifyUserChange("")
}

// fail returns the manager to Anonymous with a recorded error message.
func (m *Manager) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Anonymous
	m.lastErr = gateway.KindOf(err).Message()
}

// teardown removes the session everywhere: memory, gateway, and store. The
// cached task set is user-scoped and must not survive the user, so it goes
// with the session keys.
func (m *Manager) teardown() {
	_ = m.store.Delete(storage.KeyAuthToken)
	_ = m.store.Delete(storage.KeyUserData)
	_ = m.store.Delete(storage.KeyCachedTasks)

	m.mu.Lock()
	m.user = nil
	m.token = ""
	m.state = Anonymous
	m.lastErr = ""
	m.gw.ClearToken()
	m.logf("session cleared")
	m.mu.Unlock()

	m.notifyUserChange("")
}

func (m *Manager) notifyUserChange(userID string) {
	if m.onUserChange != nil {
		m.onUserChange(userID)
	}
}

func (m *Manager) clearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = ""
}

func (m *Manager) recordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = gateway.KindOf(err).Message()
}

func (m *Manager) logf(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Info(msg, args...)
	}
}
