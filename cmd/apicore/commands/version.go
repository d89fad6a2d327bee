package commands

import (
	"fmt"
	"runtime"

	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// buildInfo describes the binary and the API it is pointed at.
type buildInfo struct {
	Version   string `json:"version"            yaml:"version"`
	Commit    string `json:"commit"             yaml:"commit"`
	Built     string `json:"built"              yaml:"built"`
	GoVersion string `json:"go_version"         yaml:"go_version"`
	UserAgent string `json:"user_agent"         yaml:"user_agent"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

func (b buildInfo) rows() [][]string {
	rows := [][]string{
		{"Version", b.Version},
		{"Commit", b.Commit},
		{"Built", b.Built},
		{"Go", b.GoVersion},
		{"User agent", b.UserAgent},
	}

	if b.Endpoint != "" {
		rows = append(rows, []string{"API endpoint", b.Endpoint})
	}

	return rows
}

// NewVersionCommand creates the version command
func NewVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long:  "Display the apicore CLI build and the API endpoint it targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildInfo{
				Version:   version,
				Commit:    commit,
				Built:     date,
				GoVersion: runtime.Version(),
				UserAgent: constants.DefaultUserAgent,
				Endpoint:  viper.GetString("api"),
			}

			output := viper.GetString("output")
			if output == constants.FormatJSON || output == constants.FormatYAML {
				return writeStructured(cmd.OutOrStdout(), output, info)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Property", "Value")

			for _, row := range info.rows() {
				_ = table.Append(row[0], row[1])
			}

			err := table.Render()
			if err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}
