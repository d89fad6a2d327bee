package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/internal/logging"
	"github.com/fivetwenty-io/apicore/internal/notify"
	"github.com/fivetwenty-io/apicore/pkg/apiclient"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// session bundles a client with the resources opened for it.
type session struct {
	client  apicore.Client
	closers []func()
}

// Close shuts the client down and releases everything opened for it.
func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ShortHTTPTimeout)
	defer cancel()

	_ = s.client.Shutdown(ctx)

	s.runClosers()
}

// newSession builds a client from the viper settings.
func newSession(ctx context.Context) (*session, error) {
	endpoint := viper.GetString("api")
	if endpoint == "" {
		return nil, constants.ErrAPIEndpointRequired
	}

	level := viper.GetString("log-level")
	if viper.GetBool("verbose") {
		level = "debug"
	}

	zapLogger, err := logging.New(level)
	if err != nil {
		return nil, err
	}

	s := &session{}
	s.closers = append(s.closers, func() { _ = zapLogger.Sync() })

	logger := logging.NewAdapter(zapLogger)

	var notifier apicore.Notifier = notify.NewLogNotifier(logger)

	natsURL := viper.GetString("nats-url")
	if natsURL != "" {
		conn, err := notify.ConnectNATS(natsURL, "apicore-cli")
		if err != nil {
			s.runClosers()

			return nil, err
		}

		s.closers = append(s.closers, conn.Close)
		notifier = notify.Multi{notifier, notify.NewNATSNotifier(conn, viper.GetString("nats-subject"), logger)}
	}

	config := &apicore.Config{
		APIEndpoint: endpoint,
		Debug:       viper.GetBool("verbose"),
		LoginPath:   viper.GetString("login-path"),
		RefreshPath: viper.GetString("refresh-path"),
		LogoutPath:  viper.GetString("logout-path"),
	}

	client, err := apiclient.New(ctx, config,
		apiclient.WithLogger(logger),
		apiclient.WithNotifier(notifier),
		apiclient.WithRedirector(apicore.RedirectFunc(func(string) {
			_, _ = fmt.Fprintln(os.Stderr, "Session expired, run 'apicore login' to sign in again")
		})),
		apiclient.WithFileStore(viper.GetString("credentials")),
	)
	if err != nil {
		s.runClosers()

		return nil, err
	}

	s.client = client

	return s, nil
}

func (s *session) runClosers() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// parseQuery turns repeated key=value flags into url.Values.
func parseQuery(pairs []string) (url.Values, error) {
	query := url.Values{}

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrInvalidQuery, pair)
		}

		query.Add(key, value)
	}

	return query, nil
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case constants.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

		err := encoder.Encode(v)
		if err != nil {
			return fmt.Errorf("encoding output to JSON: %w", err)
		}

		return nil
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer func() { _ = encoder.Close() }()

		err := encoder.Encode(v)
		if err != nil {
			return fmt.Errorf("failed to encode output as YAML: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnknownFormat, format)
	}
}
