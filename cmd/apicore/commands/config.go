package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// settingKeys are the settings shown by config show.
var settingKeys = []string{
	"api",
	"output",
	"verbose",
	"log-level",
	"credentials",
	"nats-url",
	"nats-subject",
	"login-path",
	"refresh-path",
	"logout-path",
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Inspect the apicore CLI configuration merged from flags, environment and config file",
	}

	cmd.AddCommand(newConfigShowCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the effective configuration and the config file it was read from",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := effectiveSettings()

			output := viper.GetString("output")
			if output == constants.FormatJSON || output == constants.FormatYAML {
				return writeStructured(cmd.OutOrStdout(), output, settings)
			}

			return displayConfigTable(cmd.OutOrStdout(), settings)
		},
	}
}

func effectiveSettings() map[string]string {
	settings := make(map[string]string, len(settingKeys)+1)

	for _, key := range settingKeys {
		settings[key] = viper.GetString(key)
	}

	settings["config-file"] = viper.ConfigFileUsed()

	return settings
}

func displayConfigTable(w io.Writer, settings map[string]string) error {
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.Header("Setting", "Value")

	for _, key := range keys {
		value := settings[key]
		if value == "" {
			value = constants.NotAvailable
		}

		err := table.Append([]string{key, value})
		if err != nil {
			return fmt.Errorf("failed to append config row: %w", err)
		}
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render config table: %w", err)
	}

	return nil
}
