package receipts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ledgerline/portal-iam/internal/core/port"
)

// ErrNotFound indicates no receipt document exists under the given name.
var ErrNotFound = errors.New("receipts: not found")

// FileStore serves receipt documents from a fixed directory. Lookups are
// restricted to base names so a crafted name cannot traverse outside it.
type FileStore struct {
	dir string
}

// NewFileStore constructs a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Open returns the receipt contents for the given file name.
func (s *FileStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return nil, ErrNotFound
	}

	f, err := os.Open(filepath.Join(s.dir, base))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open receipt %s: %w", base, err)
	}
	return f, nil
}

var _ port.ReceiptStore = (*FileStore)(nil)
