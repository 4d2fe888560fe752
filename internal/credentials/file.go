// ABOUTME: File-backed credential store under the XDG config directory
// ABOUTME: Writes the token and user id to two 0600 files, one value per file

package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps each credential in its own file inside dir
// (dir/token and dir/user_id), the same layout the CLI token file uses.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on
// first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory holding the credential files.
func (s *FileStore) Dir() string {
	return s.dir
}

// Load reads both files. Missing files mean "not logged in".
func (s *FileStore) Load(_ context.Context) (Credentials, error) {
	token, err := s.read(KeyToken)
	if err != nil {
		return Credentials{}, err
	}
	userID, err := s.read(KeyUserID)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Token: token, UserID: userID}, nil
}

// Save writes both files with owner-only permissions.
func (s *FileStore) Save(_ context.Context, creds Credentials) error {
	if err := validate(creds); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}
	if err := s.write(KeyToken, creds.Token); err != nil {
		return err
	}
	return s.write(KeyUserID, creds.UserID)
}

// Clear removes both files. Already-missing files are not an error.
func (s *FileStore) Clear(_ context.Context) error {
	var errs []error
	for _, key := range []string{KeyToken, KeyUserID} {
		if err := os.Remove(filepath.Join(s.dir, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *FileStore) read(key string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// write replaces the file atomically through a sibling temp file.
func (s *FileStore) write(key, value string) error {
	path := filepath.Join(s.dir, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value+"\n"), 0600); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", key, err)
	}
	return nil
}
