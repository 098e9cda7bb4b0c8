package generate

import (
	"io"
	"os"
	"path/filepath"

	"github.com/debforge/debforge/internal/errs"
)

// copyPath dispatches to copyTree or copyFile depending on whether src is a
// directory, used by install entries whose SOURCE may be either.
func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errs.New(errs.IOError, src, err)
	}
	if info.IsDir() {
		return copyTree(src, dst)
	}
	return copyFile(src, dst, info.Mode().Perm())
}

// copyTree recursively copies the directory src into dst, preserving
// permissions and symlinks.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(link, target)
		case info.IsDir():
			return os.MkdirAll(target, 0755)
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return errs.New(errs.IOError, src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errs.New(errs.IOError, dst, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return errs.New(errs.IOError, dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errs.New(errs.IOError, dst, err)
	}
	return out.Close()
}

func writeFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.New(errs.IOError, path, err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return errs.New(errs.IOError, path, err)
	}
	return nil
}
