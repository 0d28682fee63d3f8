package social_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weighthabit/habitsync/gateway"
	"github.com/weighthabit/habitsync/internal/apitest"
	"github.com/weighthabit/habitsync/model"
	"github.com/weighthabit/habitsync/social"
)

func newStore(t *testing.T, opts ...social.Option) (*social.Store, *apitest.Server) {
	t.Helper()
	srv := apitest.NewServer(t)
	gw, err := gateway.New(gateway.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return social.New(gw, opts...), srv
}

func seedFeed(t *testing.T, st *social.Store, srv *apitest.Server, posts ...model.Post) {
	t.Helper()
	srv.Router.Get("/posts", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, model.Page[model.Post]{Data: posts})
	})
	_, err := st.FetchPosts(context.Background(), social.PostFilter{})
	require.NoError(t, err)
}

func TestLikePostFlipsStateAndCount(t *testing.T) {
	st, srv := newStore(t)
	seedFeed(t, st, srv, model.Post{ID: "p1", LikesCount: 3, IsLiked: false})
	srv.Router.Post("/posts/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, nil)
	})

	require.NoError(t, st.LikePost(context.Background(), "p1"))
	post, ok := st.Post("p1")
	require.True(t, ok)
	assert.True(t, post.IsLiked)
	assert.Equal(t, 4, post.LikesCount)

	// Second invocation is the exact inverse.
	require.NoError(t, st.LikePost(context.Background(), "p1"))
	post, _ = st.Post("p1")
	assert.False(t, post.IsLiked)
	assert.Equal(t, 3, post.LikesCount)
}

func TestLikePostDoubleTapStaysWithinTwoStates(t *testing.T) {
	st, srv := newStore(t)
	seedFeed(t, st, srv, model.Post{ID: "p1", LikesCount: 3, IsLiked: false})
	srv.Router.Post("/posts/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, nil)
	})

	for i := 0; i < 6; i++ {
		require.NoError(t, st.LikePost(context.Background(), "p1"))
	}
	post, _ := st.Post("p1")
	assert.False(t, post.IsLiked)
	assert.Equal(t, 3, post.LikesCount, "even number of flips restores the original state")
}

func TestLikePostFailureKeepsOptimisticFlip(t *testing.T) {
	st, srv := newStore(t)
	seedFeed(t, st, srv, model.Post{ID: "p1", LikesCount: 3})
	srv.Router.Post("/posts/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteFailure(w, http.StatusInternalServerError, "internal error")
	})

	require.Error(t, st.LikePost(context.Background(), "p1"))
	post, _ := st.Post("p1")
	assert.True(t, post.IsLiked, "optimistic flip sticks without rollback")
	assert.Equal(t, 4, post.LikesCount)
	assert.NotEmpty(t, st.ErrorMessage())
}

func TestLikePostFailureRollsBackWhenConfigured(t *testing.T) {
	st, srv := newStore(t, social.WithRollback(true))
	seedFeed(t, st, srv, model.Post{ID: "p1", LikesCount: 3})
	srv.Router.Post("/posts/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteFailure(w, http.StatusInternalServerError, "internal error")
	})

	require.Error(t, st.LikePost(context.Background(), "p1"))
	post, _ := st.Post("p1")
	assert.False(t, post.IsLiked)
	assert.Equal(t, 3, post.LikesCount)
}

func TestSearchUsersNormalizesKeyword(t *testing.T) {
	st, srv := newStore(t)
	var gotKeyword string
	srv.Router.Get("/social/search", func(w http.ResponseWriter, r *http.Request) {
		gotKeyword = r.URL.Query().Get("q")
		apitest.WriteSuccess(w, []model.User{{ID: "u1", Nickname: "Amélie"}})
	})

	// U+0041 U+0301 (combining acute) folds to the precomposed form.
	users, err := st.SearchUsers(context.Background(), "Ámelie")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ámelie", gotKeyword)
}

// The server serves posts under /posts and friend requests under
// /social/friends/request; any other path is a 404. Drive every post and
// friend-request operation against a router that serves only those paths.
func TestEndpointPathsMatchServerContract(t *testing.T) {
	st, srv := newStore(t)
	srv.Router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("request to unserved path: %s %s", r.Method, r.URL.Path)
		apitest.WriteFailure(w, http.StatusNotFound, "not_found")
	})
	srv.Router.Get("/posts", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, model.Page[model.Post]{Data: []model.Post{{ID: "p1"}}})
	})
	srv.Router.Post("/posts", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, model.Post{ID: "p2"})
	})
	srv.Router.Get("/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, model.Post{ID: chi.URLParam(r, "id")})
	})
	srv.Router.Post("/posts/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, nil)
	})
	srv.Router.Post("/posts/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, model.Comment{ID: "c1"})
	})
	srv.Router.Get("/posts/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, model.Page[model.Comment]{})
	})
	srv.Router.Post("/social/friends/request", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, model.Friend{ID: "f1", Status: "pending"})
	})

	ctx := context.Background()
	_, err := st.FetchPosts(ctx, social.PostFilter{})
	require.NoError(t, err)
	_, err = st.CreatePost(ctx, social.CreatePostRequest{Content: "hi"})
	require.NoError(t, err)
	_, err = st.FetchPost(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, st.LikePost(ctx, "p1"))
	_, err = st.CommentPost(ctx, "p1", "nice", "")
	require.NoError(t, err)
	_, err = st.FetchComments(ctx, "p1", 1, 20)
	require.NoError(t, err)
	_, err = st.SendFriendRequest(ctx, "u2")
	require.NoError(t, err)
}

func TestFriendRequestLifecycle(t *testing.T) {
	st, srv := newStore(t)
	srv.Router.Get("/social/friends", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, []model.Friend{
			{ID: "f1", FriendID: "u2", Status: "accepted"},
			{ID: "f2", FriendID: "u3", Status: "pending"},
		})
	})
	srv.Router.Post("/social/friends/request", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		apitest.DecodeBody(t, r, &body)
		assert.Equal(t, "u4", body["user_id"])
		apitest.WriteSuccess(w, model.Friend{ID: "f3", FriendID: body["user_id"], Status: "pending"})
	})
	srv.Router.Put("/social/friends/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		apitest.DecodeBody(t, r, &body)
		assert.Equal(t, "accept", body["action"])
		apitest.WriteSuccess(w, model.Friend{ID: chi.URLParam(r, "id"), FriendID: "u3", Status: "accepted"})
	})

	_, err := st.FetchFriends(context.Background())
	require.NoError(t, err)
	require.Len(t, st.Friends(), 2)

	// A sent request does not surface in the friend list until accepted.
	sent, err := st.SendFriendRequest(context.Background(), "u4")
	require.NoError(t, err)
	assert.Equal(t, "pending", sent.Status)
	require.Len(t, st.Friends(), 2)

	updated, err := st.RespondFriendRequest(context.Background(), "f2", "accept")
	require.NoError(t, err)
	assert.Equal(t, "accepted", updated.Status)
	for _, f := range st.Friends() {
		if f.ID == "f2" {
			assert.Equal(t, "accepted", f.Status)
		}
	}
}

func TestRemoveFriendDropsLocalEntry(t *testing.T) {
	st, srv := newStore(t)
	srv.Router.Get("/social/friends", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, []model.Friend{{ID: "f1"}, {ID: "f2"}})
	})
	srv.Router.Delete("/social/friends/{id}", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, nil)
	})

	_, err := st.FetchFriends(context.Background())
	require.NoError(t, err)

	require.NoError(t, st.RemoveFriend(context.Background(), "f1"))
	friends := st.Friends()
	require.Len(t, friends, 1)
	assert.Equal(t, "f2", friends[0].ID)
}

func TestRemoveFriendFailureKeepsEntry(t *testing.T) {
	st, srv := newStore(t)
	srv.Router.Get("/social/friends", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, []model.Friend{{ID: "f1"}})
	})
	srv.Router.Delete("/social/friends/{id}", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteFailure(w, http.StatusNotFound, "friendship not found")
	})

	_, err := st.FetchFriends(context.Background())
	require.NoError(t, err)

	require.Error(t, st.RemoveFriend(context.Background(), "f1"))
	assert.Len(t, st.Friends(), 1, "local entry only removed on confirmed delete")
}

func TestFetchLeaderboardAndMyRank(t *testing.T) {
	st, srv := newStore(t)
	srv.Router.Get("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "weekly", r.URL.Query().Get("period"))
		assert.Equal(t, "true", r.URL.Query().Get("friends_only"))
		apitest.WriteSuccess(w, model.Page[model.LeaderboardEntry]{
			Data: []model.LeaderboardEntry{{UserID: "u1", Rank: 1, Points: 500}},
		})
	})
	srv.Router.Get("/leaderboard/my-rank", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteSuccess(w, model.MyRank{Rank: 7, Points: 120})
	})

	page, err := st.FetchLeaderboard(context.Background(), social.LeaderboardFilter{Period: "weekly", FriendsOnly: true})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Len(t, st.Leaderboard(), 1)

	rank, err := st.FetchMyRank(context.Background(), "weekly")
	require.NoError(t, err)
	assert.Equal(t, 7, rank.Rank)
}

func TestCreatePostPrependsFeed(t *testing.T) {
	st, srv := newStore(t)
	seedFeed(t, st, srv, model.Post{ID: "p1"})
	srv.Router.Post("/posts", func(w http.ResponseWriter, r *http.Request) {
		var req social.CreatePostRequest
		apitest.DecodeBody(t, r, &req)
		apitest.WriteSuccess(w, model.Post{ID: "p2", Content: req.Content, IsPublic: req.IsPublic})
	})

	post, err := st.CreatePost(context.Background(), social.CreatePostRequest{Content: "day 30", IsPublic: true})
	require.NoError(t, err)
	assert.Equal(t, "p2", post.ID)

	feed := st.Posts()
	require.Len(t, feed, 2)
	assert.Equal(t, "p2", feed[0].ID, "new post goes first")
}

func TestCommentPostBumpsCount(t *testing.T) {
	st, srv := newStore(t)
	seedFeed(t, st, srv, model.Post{ID: "p1", CommentsCount: 2})
	srv.Router.Post("/posts/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		apitest.DecodeBody(t, r, &body)
		apitest.WriteSuccess(w, model.Comment{ID: "c1", PostID: chi.URLParam(r, "id"), Content: body["content"]})
	})

	comment, err := st.CommentPost(context.Background(), "p1", "keep going", "")
	require.NoError(t, err)
	assert.Equal(t, "c1", comment.ID)
	post, _ := st.Post("p1")
	assert.Equal(t, 3, post.CommentsCount)
}

func TestCommentPostFailureRollsBackWhenConfigured(t *testing.T) {
	st, srv := newStore(t, social.WithRollback(true))
	seedFeed(t, st, srv, model.Post{ID: "p1", CommentsCount: 2})
	srv.Router.Post("/posts/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
		apitest.WriteFailure(w, http.StatusInternalServerError, "internal error")
	})

	_, err := st.CommentPost(context.Background(), "p1", "keep going", "")
	require.Error(t, err)
	post, _ := st.Post("p1")
	assert.Equal(t, 2, post.CommentsCount)
}

func TestFetchPostsFailureKeepsStaleFeed(t *testing.T) {
	st, srv := newStore(t)
	fail := false
	srv.Router.Get("/posts", func(w http.ResponseWriter, r *http.Request) {
		if fail {
			apitest.WriteFailure(w, http.StatusInternalServerError, "internal error")
			return
		}
		apitest.WriteSuccess(w, model.Page[model.Post]{Data: []model.Post{{ID: "p1"}}})
	})

	_, err := st.FetchPosts(context.Background(), social.PostFilter{})
	require.NoError(t, err)

	fail = true
	_, err = st.FetchPosts(context.Background(), social.PostFilter{})
	require.Error(t, err)
	assert.Len(t, st.Posts(), 1)
	assert.False(t, st.Loading())
	assert.NotEmpty(t, st.ErrorMessage())
}

func TestFetchComments(t *testing.T) {
	st, srv := newStore(t)
	srv.Router.Get("/posts/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		apitest.WriteSuccess(w, model.Page[model.Comment]{
			Data:       []model.Comment{{ID: "c1", PostID: chi.URLParam(r, "id")}},
			Pagination: model.Pagination{Page: 2, HasPrev: true},
		})
	})

	page, err := st.FetchComments(context.Background(), "p1", 2, 20)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "p1", page.Data[0].PostID)
}
