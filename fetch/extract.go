package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/debforge/debforge/deb"
	"github.com/debforge/debforge/internal/errs"
	"github.com/ulikunitz/xz"
)

// archiveKind classifies a file name by its recognised archive extension
// (§4.4 step 4d): .tar, .tar.gz/.tgz, .tar.bz2, .tar.xz, .zip, .deb.
func archiveKind(name string) (string, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tar.gz", true
	case strings.HasSuffix(lower, ".tar.bz2"):
		return "tar.bz2", true
	case strings.HasSuffix(lower, ".tar.xz"):
		return "tar.xz", true
	case strings.HasSuffix(lower, ".tar"):
		return "tar", true
	case strings.HasSuffix(lower, ".zip"):
		return "zip", true
	case strings.HasSuffix(lower, ".deb"):
		return "deb", true
	default:
		return "", false
	}
}

func extractArchive(kind, filePath, destDir string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return errs.New(errs.IOError, filePath, err)
	}
	defer f.Close()

	switch kind {
	case "tar":
		return extractTar(tar.NewReader(f), destDir)
	case "tar.gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return errs.New(errs.ArchiveError, filePath, err)
		}
		defer gz.Close()
		return extractTar(tar.NewReader(gz), destDir)
	case "tar.bz2":
		return extractTar(tar.NewReader(bzip2.NewReader(f)), destDir)
	case "tar.xz":
		xr, err := xz.NewReader(f)
		if err != nil {
			return errs.New(errs.ArchiveError, filePath, err)
		}
		return extractTar(tar.NewReader(xr), destDir)
	case "zip":
		return extractZip(filePath, destDir)
	case "deb":
		tr, closer, err := deb.OpenDataTar(f)
		if err != nil {
			return errs.New(errs.ArchiveError, filePath, err)
		}
		if closer != nil {
			defer closer()
		}
		return extractTar(tr, destDir)
	default:
		return errs.Wrapf(errs.UnsupportedFmt, filePath, "unrecognised archive format")
	}
}

// extractTar writes every directory, regular file, and symlink entry of tr
// under destDir, rejecting any entry (or symlink target) that would resolve
// outside destDir (§4.4 step 4).
func extractTar(tr *tar.Reader, destDir string) error {
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errs.New(errs.ArchiveError, destDir, err)
		}

		target, err := safeJoin(destDir, h.Name)
		if err != nil {
			return err
		}

		switch h.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return errs.New(errs.IOError, target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return errs.New(errs.IOError, target, err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(h.Mode&0o777))
			if err != nil {
				return errs.New(errs.IOError, target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return errs.New(errs.IOError, target, err)
			}
			out.Close()
		case tar.TypeSymlink:
			if err := checkSymlinkTarget(destDir, h.Name, h.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return errs.New(errs.IOError, target, err)
			}
			os.Remove(target)
			if err := os.Symlink(h.Linkname, target); err != nil {
				return errs.New(errs.IOError, target, err)
			}
		default:
			// device files, fifos, sockets: not meaningful in a build
			// staging tree, silently skipped.
		}
	}
}

// safeJoin joins destDir and name, rejecting an absolute name or any
// traversal that would resolve outside destDir.
func safeJoin(destDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", errs.Wrapf(errs.ArchiveError, name, "absolute path inside archive is not allowed")
	}
	cleaned := filepath.Join(destDir, name)
	if cleaned != destDir && !strings.HasPrefix(cleaned, destDir+string(filepath.Separator)) {
		return "", errs.Wrapf(errs.ArchiveError, name, "archive entry escapes the extraction root")
	}
	return cleaned, nil
}

// checkSymlinkTarget rejects a symlink whose resolved target escapes
// destDir, whether the target is relative or absolute.
func checkSymlinkTarget(destDir, linkName, linkTarget string) error {
	if filepath.IsAbs(linkTarget) {
		if !strings.HasPrefix(filepath.Clean(linkTarget), destDir+string(filepath.Separator)) {
			return errs.Wrapf(errs.ArchiveError, linkName, "absolute symlink %q escapes the extraction root", linkTarget)
		}
		return nil
	}
	resolved := filepath.Join(destDir, filepath.Dir(linkName), linkTarget)
	if resolved != destDir && !strings.HasPrefix(resolved, destDir+string(filepath.Separator)) {
		return errs.Wrapf(errs.ArchiveError, linkName, "symlink target %q escapes the extraction root", linkTarget)
	}
	return nil
}

func extractZip(filePath, destDir string) error {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return errs.New(errs.ArchiveError, filePath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return errs.New(errs.IOError, target, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return errs.New(errs.IOError, target, err)
		}
		rc, err := f.Open()
		if err != nil {
			return errs.New(errs.ArchiveError, target, err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, f.Mode().Perm())
		if err != nil {
			rc.Close()
			return errs.New(errs.IOError, target, err)
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return errs.New(errs.IOError, target, copyErr)
		}
	}
	return nil
}
