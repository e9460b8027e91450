package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileStore reads credentials from a YAML file mapping provider IDs to
// secrets:
//
//	anthropic: sk-ant-...
//	openai: sk-...
//
// The file is read on every call so rotated keys are picked up without a
// restart. A missing file means no credentials; an unreadable or malformed
// file is an error.
type FileStore struct {
	path string
}

// NewFileStore creates a store reading path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file location.
func (f *FileStore) Path() string {
	return f.path
}

// HasCredential implements Store.
func (f *FileStore) HasCredential(ctx context.Context, providerID string) (bool, error) {
	_, err := f.Lookup(ctx, providerID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Lookup implements Store.
func (f *FileStore) Lookup(_ context.Context, providerID string) (string, error) {
	creds, err := f.load()
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(creds[providerID])
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds map[string]string
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", f.path, err)
	}
	return creds, nil
}
