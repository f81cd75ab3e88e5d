// Package storage holds the local export sink for downloaded quiz documents.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// FSSaver writes exported documents into a directory.
type FSSaver struct{ base string }

func NewFSSaver(base string) (*FSSaver, error) {
	if base == "" {
		base = "."
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", base, err)
	}
	return &FSSaver{base: base}, nil
}

// Save writes data under name. An existing file with the same name is kept and
// the new one gets a numeric suffix, the way browsers treat repeated downloads.
func (s *FSSaver) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name = filepath.Base(filepath.Clean(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", errors.New("empty file name")
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		dst := filepath.Join(s.base, candidate)
		f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dst, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write %s: %w", dst, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close %s: %w", dst, err)
		}
		log.Printf("INFO: Saved %s (%d bytes)", dst, len(data))
		return dst, nil
	}
}
