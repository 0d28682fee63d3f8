package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weighthabit/habitsync/session"
)

var (
	loginPhone    string
	loginEmail    string
	loginPassword string
	loginCode     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with phone or email",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if loginCode != "" {
			u, err := a.Session.LoginWithCode(cmd.Context(), loginPhone, loginCode)
			if err != nil {
				return fmt.Errorf("login failed: %s", a.Session.LastError())
			}
			fmt.Printf("Signed in as %s\n", u.Nickname)
			return nil
		}

		u, err := a.Session.Login(cmd.Context(), session.Credentials{
			Phone:    loginPhone,
			Email:    loginEmail,
			Password: loginPassword,
		})
		if err != nil {
			return fmt.Errorf("login failed: %s", a.Session.LastError())
		}
		fmt.Printf("Signed in as %s\n", u.Nickname)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the local session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.Session.Logout(cmd.Context())
		fmt.Println("Signed out")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("State: %s\n", a.Session.State())
		if u := a.Session.User(); u != nil {
			fmt.Printf("User:  %s (%s)\n", u.Nickname, u.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	loginCmd.Flags().StringVar(&loginPhone, "phone", "", "Phone number")
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Email address")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password")
	loginCmd.Flags().StringVar(&loginCode, "code", "", "One-time verification code")
}
