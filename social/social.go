// Package social owns the social slice of client state: friendships,
// leaderboards, and the activity feed.
//
// The like toggle is deliberately a pure flip. IsLiked and LikesCount move
// together and the flip is its own inverse, so repeated taps without an
// intervening fetch can only alternate between the two consistent states.
package social

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/weighthabit/habitsync/gateway"
	"github.com/weighthabit/habitsync/internal/textutil"
	"github.com/weighthabit/habitsync/model"
)

// LeaderboardFilter narrows a leaderboard fetch. Period is daily, weekly, or
// monthly.
type LeaderboardFilter struct {
	Period      string
	FriendsOnly bool
	Page        int
	Limit       int
}

// PostFilter narrows a feed fetch.
type PostFilter struct {
	PostType string
	UserID   string
	Page     int
	Limit    int
}

// Store is the social domain store.
type Store struct {
	gw     *gateway.Client
	logger *slog.Logger

	mu          sync.Mutex
	friends     []model.Friend
	leaderboard []model.LeaderboardEntry
	posts       []model.Post
	loading     bool
	lastErr     string
	rollback    bool
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithRollback enables automatic restoration of the pre-mutation entry when
// the confirming server call after an optimistic like or comment fails.
func WithRollback(enabled bool) Option {
	return func(s *Store) { s.rollback = enabled }
}

// New creates a social store.
func New(gw *gateway.Client, opts ...Option) *Store {
	s := &Store{gw: gw}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Friends returns a copy of the cached friend list.
func (s *Store) Friends() []model.Friend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Friend(nil), s.friends...)
}

// Leaderboard returns a copy of the cached leaderboard.
func (s *Store) Leaderboard() []model.LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LeaderboardEntry(nil), s.leaderboard...)
}

// Posts returns a copy of the cached feed.
func (s *Store) Posts() []model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Post(nil), s.posts...)
}

// Post returns the cached post with the id, if present.
func (s *Store) Post(postID string) (model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		if p.ID == postID {
			return p, true
		}
	}
	return model.Post{}, false
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

// FetchFriends loads the friend list, replacing the cached list wholesale.
func (s *Store) FetchFriends(ctx context.Context) ([]model.Friend, error) {
	s.begin()

	friends, err := gateway.Do[[]model.Friend](ctx, s.gw, http.MethodGet, "/social/friends", nil, nil)
	if err != nil {
		s.finishErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.friends = friends
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return append([]model.Friend(nil), friends...), nil
}

// SearchUsers looks up users by nickname or phone. The keyword is
// Unicode-normalized before it goes on the wire so visually identical input
// from different keyboards matches the same accounts.
func (s *Store) SearchUsers(ctx context.Context, keyword string) ([]model.User, error) {
	s.begin()

	query := url.Values{}
	query.Set("q", textutil.Normalize(keyword))
	users, err := gateway.Do[[]model.User](ctx, s.gw, http.MethodGet, "/social/search", nil, query)
	if err != nil {
		s.finishErr(err)
		return nil, err
	}
	s.finishOK()
	return users, nil
}

// SendFriendRequest creates a pending friendship edge toward the user. The
// cached friend list is left untouched; an outgoing request is not a friend
// until accepted, and the list refreshes through FetchFriends.
func (s *Store) SendFriendRequest(ctx context.Context, userID string) (model.Friend, error) {
	s.begin()

	body := map[string]any{"user_id": userID}
	friend, err := gateway.Do[model.Friend](ctx, s.gw, http.MethodPost, "/social/friends/request", body, nil)
	if err != nil {
		s.finishErr(err)
		return model.Friend{}, err
	}

	s.finishOK()
	return friend, nil
}

// RespondFriendRequest accepts or rejects a pending request. Action is
// "accept" or "reject"; the updated edge replaces the cached one.
func (s *Store) RespondFriendRequest(ctx context.Context, friendshipID, action string) (model.Friend, error) {
	s.begin()

	body := map[string]any{"action": action}
	friend, err := gateway.Do[model.Friend](ctx, s.gw, http.MethodPut, "/social/friends/"+friendshipID, body, nil)
	if err != nil {
		s.finishErr(err)
		return model.Friend{}, err
	}

	s.mu.Lock()
	for i := range s.friends {
		if s.friends[i].ID == friendshipID {
			s.friends[i] = friend
			break
		}
	}
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return friend, nil
}

// RemoveFriend deletes the friendship and drops the local entry on success.
func (s *Store) RemoveFriend(ctx context.Context, friendshipID string) error {
	s.begin()

	_, err := s.gw.Request(ctx, http.MethodDelete, "/social/friends/"+friendshipID, nil, nil)
	if err != nil {
		s.finishErr(err)
		return err
	}

	s.mu.Lock()
	kept := s.friends[:0]
	for _, f := range s.friends {
		if f.ID != friendshipID {
			kept = append(kept, f)
		}
	}
	s.friends = kept
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return nil
}

// FetchLeaderboard loads a page of the period leaderboard, replacing the
// cached leaderboard wholesale.
func (s *Store) FetchLeaderboard(ctx context.Context, filter LeaderboardFilter) (model.Page[model.LeaderboardEntry], error) {
	s.begin()

	query := url.Values{}
	if filter.Period != "" {
		query.Set("period", filter.Period)
	}
	if filter.FriendsOnly {
		query.Set("friends_only", "true")
	}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	page, err := gateway.Do[model.Page[model.LeaderboardEntry]](ctx, s.gw, http.MethodGet, "/leaderboard", nil, query)
	if err != nil {
		s.finishErr(err)
		return model.Page[model.LeaderboardEntry]{}, err
	}

	s.mu.Lock()
	s.leaderboard = page.Data
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return page, nil
}

// FetchMyRank loads the current user's rank for the period.
func (s *Store) FetchMyRank(ctx context.Context, period string) (model.MyRank, error) {
	s.begin()

	query := url.Values{}
	if period != "" {
		query.Set("period", period)
	}
	rank, err := gateway.Do[model.MyRank](ctx, s.gw, http.MethodGet, "/leaderboard/my-rank", nil, query)
	if err != nil {
		s.finishErr(err)
		return model.MyRank{}, err
	}
	s.finishOK()
	return rank, nil
}

// FetchPosts loads a page of the feed, replacing the cached feed wholesale.
func (s *Store) FetchPosts(ctx context.Context, filter PostFilter) (model.Page[model.Post], error) {
	s.begin()

	query := url.Values{}
	if filter.PostType != "" {
		query.Set("post_type", filter.PostType)
	}
	if filter.UserID != "" {
		query.Set("user_id", filter.UserID)
	}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	page, err := gateway.Do[model.Page[model.Post]](ctx, s.gw, http.MethodGet, "/posts", nil, query)
	if err != nil {
		s.finishErr(err)
		return model.Page[model.Post]{}, err
	}

	s.mu.Lock()
	s.posts = page.Data
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return page, nil
}

// CreatePostRequest describes a new feed post.
type CreatePostRequest struct {
	Content  string   `json:"content"`
	Images   []string `json:"images,omitempty"`
	PostType string   `json:"post_type,omitempty"`
	IsPublic bool     `json:"is_public"`
}

// CreatePost publishes a post and prepends it to the cached feed.
func (s *Store) CreatePost(ctx context.Context, req CreatePostRequest) (model.Post, error) {
	s.begin()

	post, err := gateway.Do[model.Post](ctx, s.gw, http.MethodPost, "/posts", req, nil)
	if err != nil {
		s.finishErr(err)
		return model.Post{}, err
	}

	s.mu.Lock()
	s.posts = append([]model.Post{post}, s.posts...)
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return post, nil
}

// FetchPost loads one post, refreshing its feed entry in place when present.
func (s *Store) FetchPost(ctx context.Context, postID string) (model.Post, error) {
	s.begin()

	post, err := gateway.Do[model.Post](ctx, s.gw, http.MethodGet, "/posts/"+postID, nil, nil)
	if err != nil {
		s.finishErr(err)
		return model.Post{}, err
	}

	s.mu.Lock()
	for i := range s.posts {
		if s.posts[i].ID == post.ID {
			s.posts[i] = post
			break
		}
	}
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	return post, nil
}

// LikePost toggles the like state of the cached post optimistically, then
// confirms with the server. The flip moves IsLiked and LikesCount together.
func (s *Store) LikePost(ctx context.Context, postID string) error {
	s.begin()

	prior, flipped := s.flipLike(postID)

	_, err := s.gw.Request(ctx, http.MethodPost, "/posts/"+postID+"/like", nil, nil)
	if err != nil {
		if flipped && s.rollback {
			s.restorePost(prior)
		}
		s.finishErr(err)
		return err
	}

	s.finishOK()
	return nil
}

// flipLike applies the pure like flip and returns the prior entry.
func (s *Store) flipLike(postID string) (model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == postID {
			prior := s.posts[i]
			if s.posts[i].IsLiked {
				s.posts[i].IsLiked = false
				s.posts[i].LikesCount--
			} else {
				s.posts[i].IsLiked = true
				s.posts[i].LikesCount++
			}
			return prior, true
		}
	}
	return model.Post{}, false
}

func (s *Store) restorePost(prior model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == prior.ID {
			s.posts[i] = prior
			return
		}
	}
}

// CommentPost adds a comment, bumping the cached post's comment count
// optimistically.
func (s *Store) CommentPost(ctx context.Context, postID, content, parentID string) (model.Comment, error) {
	s.begin()

	prior, bumped := s.bumpComments(postID, 1)

	body := map[string]any{"content": content}
	if parentID != "" {
		body["parent_id"] = parentID
	}
	comment, err := gateway.Do[model.Comment](ctx, s.gw, http.MethodPost, "/posts/"+postID+"/comments", body, nil)
	if err != nil {
		if bumped && s.rollback {
			s.restorePost(prior)
		}
		s.finishErr(err)
		return model.Comment{}, err
	}

	s.finishOK()
	return comment, nil
}

func (s *Store) bumpComments(postID string, delta int) (model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == postID {
			prior := s.posts[i]
			s.posts[i].CommentsCount += delta
			return prior, true
		}
	}
	return model.Post{}, false
}

// FetchComments loads a page of a post's comments.
func (s *Store) FetchComments(ctx context.Context, postID string, page, limit int) (model.Page[model.Comment], error) {
	s.begin()

	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	result, err := gateway.Do[model.Page[model.Comment]](ctx, s.gw, http.MethodGet, "/posts/"+postID+"/comments", nil, query)
	if err != nil {
		s.finishErr(err)
		return model.Page[model.Comment]{}, err
	}
	s.finishOK()
	return result, nil
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
