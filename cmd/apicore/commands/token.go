package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/fivetwenty-io/apicore/internal/auth"
	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewTokenCommand creates the token command group.
func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect authentication tokens",
		Long:  "Commands for inspecting the stored authentication tokens",
	}

	cmd.AddCommand(newTokenStatusCommand())

	return cmd
}

func newTokenStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show token status and expiration",
		Long:  "Display information about the stored token including its expiration time",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := credentialStore()
			if err != nil {
				return err
			}

			cred, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			status := buildTokenStatus(cred, time.Now())

			output := viper.GetString("output")
			if output == constants.FormatJSON || output == constants.FormatYAML {
				return writeStructured(cmd.OutOrStdout(), output, status)
			}

			return displayTokenStatusTable(cmd.OutOrStdout(), status)
		},
	}
}

// tokenStatus is the rendered view of a stored credential.
type tokenStatus struct {
	Authenticated         bool   `json:"authenticated"                yaml:"authenticated"`
	Status                string `json:"status"                       yaml:"status"`
	ExpiresAt             string `json:"expires_at,omitempty"         yaml:"expires_at,omitempty"`
	TimeUntilExpiry       string `json:"time_until_expiry,omitempty"  yaml:"time_until_expiry,omitempty"`
	RefreshTokenAvailable bool   `json:"refresh_token_available"      yaml:"refresh_token_available"`
}

func credentialStore() (*auth.FileStore, error) {
	path := viper.GetString("credentials")
	if path == "" {
		defaultPath, err := auth.DefaultFileStorePath()
		if err != nil {
			return nil, err
		}

		path = defaultPath
	}

	return auth.NewFileStore(path), nil
}

func buildTokenStatus(cred *apicore.Credential, now time.Time) tokenStatus {
	if cred == nil || cred.AccessToken == "" {
		return tokenStatus{Status: "not logged in"}
	}

	status := tokenStatus{
		Authenticated:         true,
		RefreshTokenAvailable: cred.HasRefreshToken(),
	}

	expiresAt, err := auth.Expiry(cred)
	if err != nil {
		status.Status = "unknown expiry"
		status.ExpiresAt = constants.NotAvailable

		return status
	}

	remaining := expiresAt.Sub(now)
	status.ExpiresAt = expiresAt.UTC().Format(time.RFC3339)

	switch {
	case remaining <= 0:
		status.Status = "expired"
		status.TimeUntilExpiry = "expired " + (-remaining).Round(time.Second).String() + " ago"
	case remaining <= constants.TokenExpiringSoon:
		status.Status = "expiring soon"
		status.TimeUntilExpiry = remaining.Round(time.Second).String()
	default:
		status.Status = "valid"
		status.TimeUntilExpiry = remaining.Round(time.Second).String()
	}

	return status
}

func displayTokenStatusTable(w io.Writer, status tokenStatus) error {
	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")

	rows := [][]string{
		{"Authenticated", fmt.Sprintf("%v", status.Authenticated)},
		{"Status", status.Status},
	}

	if status.ExpiresAt != "" {
		rows = append(rows, []string{"Expires At", status.ExpiresAt})
	}

	if status.TimeUntilExpiry != "" {
		rows = append(rows, []string{"Time Until Expiry", status.TimeUntilExpiry})
	}

	rows = append(rows, []string{"Refresh Token Available", fmt.Sprintf("%v", status.RefreshTokenAvailable)})

	for _, row := range rows {
		err := table.Append(row)
		if err != nil {
			return fmt.Errorf("failed to append table row: %w", err)
		}
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render token status table: %w", err)
	}

	return nil
}
