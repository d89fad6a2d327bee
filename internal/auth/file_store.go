package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"gopkg.in/yaml.v3"
)

// FileStore persists the credential as a YAML file readable only by the owner.
type FileStore struct {
	path  string
	mutex sync.Mutex
}

type credentialFile struct {
	AccessToken   string     `yaml:"access_token"`
	RefreshToken  string     `yaml:"refresh_token,omitempty"`
	ExpiresAt     *time.Time `yaml:"expires_at,omitempty"`
	LastRefreshed time.Time  `yaml:"last_refreshed"`
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFileStorePath returns ~/.apicore/credentials.yml.
func DefaultFileStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}

	return filepath.Join(home, ".apicore", "credentials.yml"), nil
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the credential; a missing file yields (nil, nil).
func (s *FileStore) Load(ctx context.Context) (*apicore.Credential, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var file credentialFile

	err = yaml.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}

	if file.AccessToken == "" {
		return nil, nil
	}

	cred := &apicore.Credential{
		AccessToken:  file.AccessToken,
		RefreshToken: file.RefreshToken,
	}

	if file.ExpiresAt != nil {
		cred.ExpiresAt = *file.ExpiresAt
	}

	return cred, nil
}

// Save writes cred atomically with owner-only permissions.
func (s *FileStore) Save(ctx context.Context, cred *apicore.Credential) error {
	if cred == nil {
		return s.Clear(ctx)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	file := credentialFile{
		AccessToken:   cred.AccessToken,
		RefreshToken:  cred.RefreshToken,
		LastRefreshed: time.Now().UTC(),
	}

	if !cred.ExpiresAt.IsZero() {
		expiresAt := cred.ExpiresAt.UTC()
		file.ExpiresAt = &expiresAt
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to encode credential file: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(s.path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	tmp := s.path + ".tmp"

	err = os.WriteFile(tmp, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}

	err = os.Rename(tmp, s.path)
	if err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("failed to replace credential file: %w", err)
	}

	return nil
}

// Clear deletes the credential file.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}

	return nil
}
