package app_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weighthabit/habitsync/app"
	"github.com/weighthabit/habitsync/internal/apitest"
	"github.com/weighthabit/habitsync/model"
	"github.com/weighthabit/habitsync/session"
	"github.com/weighthabit/habitsync/storage"
	"github.com/weighthabit/habitsync/storage/memory"
)

func newApp(t *testing.T, srv *apitest.Server) *app.App {
	t.Helper()
	a, err := app.New(app.Config{
		BaseURL: srv.URL,
		Store:   memory.NewStore(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func registerLogin(srv *apitest.Server) {
	srv.Router.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, map[string]any{
			"user":  model.User{ID: "u1", Nickname: "sam"},
			"token": "token-1",
		})
	})
}

func TestNewRequiresStoreOrDataDir(t *testing.T) {
	_, err := app.New(app.Config{BaseURL: "http://127.0.0.1:1"})
	require.Error(t, err)
}

func TestUnauthorizedResponseTearsDownSession(t *testing.T) {
	srv := apitest.NewServer(t)
	registerLogin(srv)
	var gotAuth []string
	srv.Router.Get("/tasks/daily", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		apitest.WriteFailure(w, http.StatusUnauthorized, "token expired")
	})

	a := newApp(t, srv)
	_, err := a.Session.Login(context.Background(), session.Credentials{Phone: "555", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, session.Authenticated, a.Session.State())

	// Any 401, on any endpoint, ends the session through the gateway hook.
	_, err = a.Tasks.FetchDaily(context.Background(), "2026-03-01")
	require.Error(t, err)

	assert.Equal(t, session.Anonymous, a.Session.State())
	assert.False(t, a.Gateway.HasToken())
	assert.NotEmpty(t, a.Session.LastError())

	_, err = a.Store.Get(storage.KeyAuthToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = a.Store.Get(storage.KeyUserData)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The failed call itself still carried the pre-teardown token.
	require.Len(t, gotAuth, 1)
	assert.Equal(t, "Bearer token-1", gotAuth[0])
}

func TestLoginWiresTokenAcrossStores(t *testing.T) {
	srv := apitest.NewServer(t)
	registerLogin(srv)
	var gotAuth string
	srv.Router.Get("/social/friends", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		apitest.WriteSuccess(w, []model.Friend{})
	})

	a := newApp(t, srv)
	_, err := a.Session.Login(context.Background(), session.Credentials{Phone: "555", Password: "pw"})
	require.NoError(t, err)

	_, err = a.Social.FetchFriends(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer token-1", gotAuth)
}

func TestRestartRestoresSession(t *testing.T) {
	srv := apitest.NewServer(t)
	registerLogin(srv)

	store := memory.NewStore()
	a, err := app.New(app.Config{BaseURL: srv.URL, Store: store})
	require.NoError(t, err)
	_, err = a.Session.Login(context.Background(), session.Credentials{Phone: "555", Password: "pw"})
	require.NoError(t, err)

	// Same persistent store, fresh process.
	a2, err := app.New(app.Config{BaseURL: srv.URL, Store: store})
	require.NoError(t, err)
	assert.Equal(t, session.Authenticated, a2.Session.State())
	require.NotNil(t, a2.Session.User())
	assert.Equal(t, "u1", a2.Session.User().ID)
	assert.True(t, a2.Gateway.HasToken())
}

func TestUserSwitchDropsPreviousUsersDayCache(t *testing.T) {
	srv := apitest.NewServer(t)
	users := []model.User{{ID: "alice"}, {ID: "bob"}}
	logins := 0
	srv.Router.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		u := users[logins]
		logins++
		apitest.WriteSuccess(w, map[string]any{"user": u, "token": "token-" + u.ID})
	})
	srv.Router.Post("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, nil)
	})
	srv.Router.Get("/tasks/daily", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, model.TaskSelection{
			Date:  "2026-03-01",
			Tasks: []model.DailyTask{{ID: "d1", UserID: "alice", TaskID: "t1", Date: "2026-03-01"}},
		})
	})

	a := newApp(t, srv)
	_, err := a.Session.Login(context.Background(), session.Credentials{Phone: "555", Password: "pw"})
	require.NoError(t, err)
	_, err = a.Tasks.FetchDaily(context.Background(), "2026-03-01")
	require.NoError(t, err)
	require.Len(t, a.Tasks.Daily("2026-03-01"), 1)

	a.Session.Logout(context.Background())
	assert.Empty(t, a.Tasks.Daily("2026-03-01"), "logout evicts the day cache")

	_, err = a.Session.Login(context.Background(), session.Credentials{Phone: "666", Password: "pw"})
	require.NoError(t, err)
	assert.Empty(t, a.Tasks.Daily("2026-03-01"), "one user's day never reaches the next")
}

func TestLogoutClearsPersistedTaskCache(t *testing.T) {
	srv := apitest.NewServer(t)
	registerLogin(srv)
	srv.Router.Post("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, nil)
	})
	srv.Router.Get("/tasks/daily", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, model.TaskSelection{
			Date:  model.Today(),
			Tasks: []model.DailyTask{{ID: "d1", TaskID: "t1", Date: model.Today()}},
		})
	})

	a := newApp(t, srv)
	_, err := a.Session.Login(context.Background(), session.Credentials{Phone: "555", Password: "pw"})
	require.NoError(t, err)
	_, err = a.Tasks.FetchDaily(context.Background(), "")
	require.NoError(t, err)
	_, err = a.Store.Get(storage.KeyCachedTasks)
	require.NoError(t, err)

	a.Session.Logout(context.Background())
	_, err = a.Store.Get(storage.KeyCachedTasks)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, ok := a.Tasks.RestoreCachedDay()
	assert.False(t, ok, "nothing to restore for the next user")
}

func TestBBoltBackedApp(t *testing.T) {
	srv := apitest.NewServer(t)
	registerLogin(srv)

	dir := t.TempDir()
	a, err := app.New(app.Config{BaseURL: srv.URL, DataDir: dir})
	require.NoError(t, err)

	_, err = a.Session.Login(context.Background(), session.Credentials{Phone: "555", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	a2, err := app.New(app.Config{BaseURL: srv.URL, DataDir: dir})
	require.NoError(t, err)
	defer a2.Close()
	assert.Equal(t, session.Authenticated, a2.Session.State())
}
