package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRequestCommand creates the request command
func NewRequestCommand() *cobra.Command {
	var (
		data       string
		query      []string
		skipAuth   bool
		retryCount int
		retryDelay time.Duration
		requestKey string
	)

	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send a request through the client pipeline",
		Long: `Send a request to the configured API. The stored token is attached and
refreshed as needed. Use --data @file to read the body from a file.`,
		Example: `  apicore request GET /users --query page=2
  apicore request POST /users --data '{"name":"alice"}' --retry 2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseQuery(query)
			if err != nil {
				return err
			}

			body, err := readBody(data)
			if err != nil {
				return err
			}

			opts := []apicore.RequestOption{apicore.WithRetry(retryCount, retryDelay)}
			if skipAuth {
				opts = append(opts, apicore.WithSkipAuth())
			}

			if requestKey != "" {
				opts = append(opts, apicore.WithRequestKey(requestKey))
			}

			s, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			resp, err := s.client.Do(cmd.Context(), &apicore.Request{
				Method:  args[0],
				Path:    args[1],
				Query:   params,
				Body:    body,
				Options: apicore.NewRequestOptions(nil, opts...),
			})
			if err != nil {
				return err
			}

			return writeResponse(cmd.OutOrStdout(), viper.GetString("output"), resp)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "request body, or @file")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "query parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&skipAuth, "skip-auth", false, "send without the bearer token")
	cmd.Flags().IntVar(&retryCount, "retry", constants.DefaultRetryCount, "retries for transient failures")
	cmd.Flags().DurationVar(&retryDelay, "retry-delay", constants.DefaultRetryDelay, "base delay between retries")
	cmd.Flags().StringVar(&requestKey, "key", "", "request key for duplicate suppression")

	return cmd
}

func readBody(data string) ([]byte, error) {
	if data == "" {
		return nil, nil
	}

	if path, ok := strings.CutPrefix(data, "@"); ok {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body from %s: %w", path, err)
		}

		return content, nil
	}

	return []byte(data), nil
}

// writeResponse prints the unwrapped payload. Non-JSON bodies are printed
// as they are.
func writeResponse(w io.Writer, format string, resp *apicore.Response) error {
	payload := resp.Data
	if len(payload) == 0 {
		payload = resp.Body
	}

	if len(payload) == 0 {
		return nil
	}

	if !json.Valid(payload) {
		_, err := w.Write(payload)

		return err
	}

	if format == constants.FormatYAML {
		var value interface{}

		err := json.Unmarshal(payload, &value)
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}

		return writeStructured(w, format, value)
	}

	var out bytes.Buffer

	err := json.Indent(&out, payload, "", strings.Repeat(" ", constants.JSONIndentSize))
	if err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}

	out.WriteByte('\n')

	_, err = out.WriteTo(w)

	return err
}
