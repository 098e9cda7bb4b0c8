package build

import (
	"os"
	"path/filepath"

	"github.com/debforge/debforge/internal/errs"
)

// filepathWalkFiles visits every regular file under root in lexical order,
// invoking fn with its root-relative path, its mode, and its content.
func filepathWalkFiles(root string, fn func(relPath string, mode os.FileMode, content []byte) error) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errs.New(errs.IOError, path, err)
		}
		if info.IsDir() || info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errs.New(errs.IOError, path, err)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return errs.New(errs.IOError, path, err)
		}
		return fn(rel, info.Mode(), content)
	})
}
