package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weighthabit/habitsync/social"
)

var (
	leaderboardPeriod  string
	leaderboardFriends bool
	postPublic         bool
)

var socialCmd = &cobra.Command{
	Use:   "social",
	Short: "Friends, leaderboard, and the activity feed",
}

var socialFriendsCmd = &cobra.Command{
	Use:   "friends",
	Short: "List friends",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		friends, err := a.Social.FetchFriends(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s", a.Social.ErrorMessage())
		}
		for _, f := range friends {
			name := f.FriendID
			if f.Friend != nil {
				name = f.Friend.Nickname
			}
			fmt.Printf("%-10s %s\n", f.Status, name)
		}
		return nil
	},
}

var socialSearchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search users by nickname or phone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		users, err := a.Social.SearchUsers(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s", a.Social.ErrorMessage())
		}
		for _, u := range users {
			fmt.Printf("%-36s %s\n", u.ID, u.Nickname)
		}
		return nil
	},
}

var socialLeaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the period leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		page, err := a.Social.FetchLeaderboard(cmd.Context(), social.LeaderboardFilter{
			Period:      leaderboardPeriod,
			FriendsOnly: leaderboardFriends,
		})
		if err != nil {
			return fmt.Errorf("%s", a.Social.ErrorMessage())
		}
		for _, entry := range page.Data {
			name := entry.UserID
			if entry.User != nil {
				name = entry.User.Nickname
			}
			fmt.Printf("%3d. %-20s %d pts\n", entry.Rank, name, entry.Points)
		}

		rank, err := a.Social.FetchMyRank(cmd.Context(), leaderboardPeriod)
		if err == nil {
			fmt.Printf("Your rank: %d (%d pts)\n", rank.Rank, rank.Points)
		}
		return nil
	},
}

var socialPostsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Show the activity feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		page, err := a.Social.FetchPosts(cmd.Context(), social.PostFilter{})
		if err != nil {
			return fmt.Errorf("%s", a.Social.ErrorMessage())
		}
		for _, p := range page.Data {
			liked := " "
			if p.IsLiked {
				liked = "♥"
			}
			name := p.UserID
			if p.User != nil {
				name = p.User.Nickname
			}
			fmt.Printf("%s %-36s %s: %s (%d likes, %d comments)\n",
				liked, p.ID, name, p.Content, p.LikesCount, p.CommentsCount)
		}
		return nil
	},
}

var socialPostCmd = &cobra.Command{
	Use:   "post <content>",
	Short: "Publish a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		post, err := a.Social.CreatePost(cmd.Context(), social.CreatePostRequest{
			Content:  args[0],
			IsPublic: postPublic,
		})
		if err != nil {
			return fmt.Errorf("%s", a.Social.ErrorMessage())
		}
		fmt.Printf("Posted %s\n", post.ID)
		return nil
	},
}

var socialLikeCmd = &cobra.Command{
	Use:   "like <post-id>",
	Short: "Toggle a like on a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		// Fetch first so the toggle has a cached entry to flip.
		if _, err := a.Social.FetchPost(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("%s", a.Social.ErrorMessage())
		}
		if err := a.Social.LikePost(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("%s", a.Social.ErrorMessage())
		}
		fmt.Println("Like toggled")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(socialCmd)
	socialCmd.AddCommand(socialFriendsCmd)
	socialCmd.AddCommand(socialSearchCmd)
	socialCmd.AddCommand(socialLeaderboardCmd)
	socialCmd.AddCommand(socialPostsCmd)
	socialCmd.AddCommand(socialPostCmd)
	socialCmd.AddCommand(socialLikeCmd)
	socialLeaderboardCmd.Flags().StringVar(&leaderboardPeriod, "period", "weekly", "Leaderboard period (daily, weekly, monthly)")
	socialLeaderboardCmd.Flags().BoolVar(&leaderboardFriends, "friends", false, "Friends only")
	socialPostCmd.Flags().BoolVar(&postPublic, "public", true, "Make the post public")
}
