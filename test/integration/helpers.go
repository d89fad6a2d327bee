//go:build integration

package integration

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	APIEndpoint string
	Username    string
	Password    string
	ProbePath   string
	BinaryPath  string
	Verbose     bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	probe := os.Getenv("APICORE_TEST_PROBE_PATH")
	if probe == "" {
		probe = "/me"
	}

	return &TestConfig{
		APIEndpoint: os.Getenv("APICORE_TEST_ENDPOINT"),
		Username:    os.Getenv("APICORE_TEST_USERNAME"),
		Password:    os.Getenv("APICORE_TEST_PASSWORD"),
		ProbePath:   probe,
		BinaryPath:  binaryPath(),
		Verbose:     os.Getenv("APICORE_TEST_VERBOSE") == "true",
	}
}

func binaryPath() string {
	if path := os.Getenv("APICORE_BINARY_PATH"); path != "" {
		return path
	}

	for _, candidate := range []string{"../../apicore", "./apicore", "../apicore"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "apicore"
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.APIEndpoint == "" || config.Username == "" {
		t.Skip("APICORE_TEST_ENDPOINT or APICORE_TEST_USERNAME not set, skipping integration test")
	}

	if _, err := exec.LookPath(config.BinaryPath); err != nil {
		t.Skipf("apicore binary not found at %s, skipping integration test", config.BinaryPath)
	}
}

// CommandRunner runs apicore commands against an isolated home directory.
type CommandRunner struct {
	config *TestConfig
	t      *testing.T
	home   string
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config: config,
		t:      t,
		home:   t.TempDir(),
	}
}

// CredentialsPath is where the runner's credentials file lives.
func (runner *CommandRunner) CredentialsPath() string {
	return filepath.Join(runner.home, ".apicore", "credentials.yml")
}

// Run executes an apicore command and returns its output
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	args = append([]string{"--api", runner.config.APIEndpoint}, args...)

	cmd := exec.Command(runner.config.BinaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+runner.home)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.BinaryPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// Login signs in with the configured user.
func (runner *CommandRunner) Login() error {
	_, _, err := runner.Run("login", "--username", runner.config.Username, "--password", runner.config.Password)

	return err
}
