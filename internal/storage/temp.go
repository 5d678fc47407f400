package storage

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const tempPrefix = "upload-"

// TempStore holds uploaded images until a profile update claims them
type TempStore struct {
	dir string
}

func NewTempStore(dir string) (*TempStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &TempStore{dir: dir}, nil
}

// Save checks that r holds a decodable image and stores it.
// The returned reference is the file name inside the store.
func (t *TempStore) Save(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxImageBytes {
		return "", ErrImageTooLarge
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	ref := tempPrefix + uuid.NewString() + "." + format
	if err := os.WriteFile(filepath.Join(t.dir, ref), data, 0o600); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return ref, nil
}

// Open opens a stored upload. References that point outside the store are
// rejected.
func (t *TempStore) Open(ref string) (*os.File, error) {
	path, err := t.path(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: upload %q not found", ErrInvalidAvatar, ref)
		}
		return nil, fmt.Errorf("open upload: %w", err)
	}

	return f, nil
}

// Remove deletes a stored upload
func (t *TempStore) Remove(ref string) error {
	path, err := t.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

func (t *TempStore) path(ref string) (string, error) {
	if ref == "" || filepath.Base(ref) != ref || !strings.HasPrefix(ref, tempPrefix) {
		return "", fmt.Errorf("%w: unknown upload reference", ErrInvalidAvatar)
	}
	return filepath.Join(t.dir, ref), nil
}
