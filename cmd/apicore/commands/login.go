package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// NewLoginCommand creates the login command
func NewLoginCommand() *cobra.Command {
	var (
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the API",
		Long:  "Authenticate against the login endpoint and store the issued tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetString("api") == "" {
				reader := bufio.NewReader(os.Stdin)
				_, _ = fmt.Fprint(cmd.OutOrStdout(), "API endpoint: ")
				endpoint, _ := reader.ReadString('\n')
				viper.Set("api", strings.TrimSpace(endpoint))
			}

			if username == "" {
				reader := bufio.NewReader(os.Stdin)
				_, _ = fmt.Fprint(cmd.OutOrStdout(), "Username: ")
				username, _ = reader.ReadString('\n')
				username = strings.TrimSpace(username)
			}

			if username == "" {
				return constants.ErrUsernameRequired
			}

			if password == "" {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), "Password: ")

				passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}

				_, _ = fmt.Fprintln(cmd.OutOrStdout())
				password = string(passwordBytes)
			}

			s, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = s.client.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s\n", viper.GetString("api"), username)

			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")

	return cmd
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of the API",
		Long:  "Notify the logout endpoint and remove the stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			err = s.client.Logout(cmd.Context())
			if err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")

			return nil
		},
	}
}
