// Package fetch implements the content-addressed download and extraction
// cache: retry/backoff HTTP fetch, sha256 verification against a lockfile,
// archive extraction, and single-flight coordination per URL.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/debforge/debforge/internal/errs"
	"github.com/debforge/debforge/internal/logx"
	"github.com/debforge/debforge/lockfile"
)

// Mode selects how a fetch reacts to a URL with no lockfile entry.
type Mode int

const (
	// ModeNormal fails with HashMissing when no lockfile entry exists
	// (used by generate/build: the lockfile must already be complete).
	ModeNormal Mode = iota
	// ModeLocking records a freshly computed hash instead of failing
	// (used by lock/update, which are expected to populate the lockfile).
	ModeLocking
)

// Result is the outcome of a successful Fetch.
type Result struct {
	FilePath     string // the downloaded artifact, inside the cache
	ExtractedDir string // the extracted tree, or "" if the URL is not a recognised archive
	SHA256       string
}

// Cache is a content-addressed download/extraction cache rooted at Dir. A
// single Cache instance coordinates single-flight access per URL and is
// safe for concurrent use by multiple goroutines.
type Cache struct {
	Dir    string
	Client *http.Client

	keyMu sync.Mutex
	keys  map[string]*sync.Mutex
}

// New creates a Cache rooted at dir. A nil client falls back to
// http.DefaultClient; callers needing a connect timeout should supply one.
func New(dir string, client *http.Client) *Cache {
	if client == nil {
		client = http.DefaultClient
	}
	return &Cache{Dir: dir, Client: client, keys: make(map[string]*sync.Mutex)}
}

func (c *Cache) lock(key string) func() {
	c.keyMu.Lock()
	mu, ok := c.keys[key]
	if !ok {
		mu = &sync.Mutex{}
		c.keys[key] = mu
	}
	c.keyMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (c *Cache) rawDir() string        { return filepath.Join(c.Dir, "files") }
func (c *Cache) extractedRoot() string { return filepath.Join(c.Dir, "extracted") }

// Purge removes the entire cache directory tree, backing the `purge`
// subcommand.
func (c *Cache) Purge() error {
	if err := os.RemoveAll(c.Dir); err != nil {
		return errs.New(errs.IOError, c.Dir, err)
	}
	return nil
}

// Fetch implements the download/verify/extract protocol (§4.4): single-flight
// per URL, sha256 verification against lf, archive extraction into a
// content-addressed sibling directory, and atomic cache publication. lf.Save
// is the caller's responsibility.
func (c *Cache) Fetch(ctx context.Context, rawURL string, lf *lockfile.Lockfile, mode Mode) (*Result, error) {
	unlock := c.lock(rawURL)
	defer unlock()

	if entry, ok := lf.Get(rawURL); ok {
		if res, ok := c.cached(entry.SHA256); ok {
			return res, nil
		}
	}

	logx.Info("fetching %s", rawURL)
	tmpPath, sha, err := c.download(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	entry, hasEntry := lf.Get(rawURL)
	switch {
	case hasEntry && entry.SHA256 != sha:
		os.Remove(tmpPath)
		return nil, errs.Wrapf(errs.HashMismatch, rawURL, "expected sha256 %s, got %s", entry.SHA256, sha)
	case !hasEntry && mode == ModeNormal:
		os.Remove(tmpPath)
		return nil, errs.Wrapf(errs.HashMissing, rawURL, "no lockfile entry; run `lock` or `update` first")
	case !hasEntry:
		lf.Put(rawURL, sha)
	}

	finalPath, err := c.publishFile(tmpPath, sha, rawURL)
	if err != nil {
		return nil, err
	}

	extractedDir, err := c.maybeExtract(finalPath, sha)
	if err != nil {
		return nil, err
	}

	return &Result{FilePath: finalPath, ExtractedDir: extractedDir, SHA256: sha}, nil
}

// cached returns a Result without touching the network if the cache already
// holds sha's artifact (and, if applicable, its extraction).
func (c *Cache) cached(sha string) (*Result, bool) {
	dir := filepath.Join(c.rawDir(), sha)
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return nil, false
	}
	filePath := filepath.Join(dir, entries[0].Name())

	extractedDir := ""
	if _, ok := archiveKind(entries[0].Name()); ok {
		candidate := filepath.Join(c.extractedRoot(), sha)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			extractedDir = candidate
		}
	}
	return &Result{FilePath: filePath, ExtractedDir: extractedDir, SHA256: sha}, true
}

// download streams rawURL to a temp file while hashing it, retrying
// transient failures per §4.4 step 3.
func (c *Cache) download(ctx context.Context, rawURL string) (tmpPath, sha256hex string, err error) {
	if err := os.MkdirAll(c.rawDir(), 0755); err != nil {
		return "", "", errs.New(errs.IOError, c.rawDir(), err)
	}
	tmp, err := os.CreateTemp(c.rawDir(), "download-*")
	if err != nil {
		return "", "", errs.New(errs.IOError, c.rawDir(), err)
	}
	defer tmp.Close()

	resp, err := getWithRetry(ctx, c.Client, rawURL)
	if err != nil {
		os.Remove(tmp.Name())
		return "", "", errs.New(errs.NetworkError, rawURL, err)
	}
	defer resp.Body.Close()

	h := sha256.New()
	if _, err := io.Copy(tmp, io.TeeReader(resp.Body, h)); err != nil {
		os.Remove(tmp.Name())
		return "", "", errs.New(errs.NetworkError, rawURL, err)
	}

	return tmp.Name(), hex.EncodeToString(h.Sum(nil)), nil
}

// publishFile renames the staged download into its content-addressed home,
// rawDir/<sha256>/<basename>, tolerating a concurrent publish of identical
// content under a different URL.
func (c *Cache) publishFile(tmpPath, sha, rawURL string) (string, error) {
	destDir := filepath.Join(c.rawDir(), sha)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		os.Remove(tmpPath)
		return "", errs.New(errs.IOError, destDir, err)
	}
	destPath := filepath.Join(destDir, baseNameFromURL(rawURL))
	if _, err := os.Stat(destPath); err == nil {
		os.Remove(tmpPath)
		return destPath, nil
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", errs.New(errs.IOError, destPath, err)
	}
	return destPath, nil
}

// maybeExtract extracts filePath into extractedRoot/<sha256> if its name
// matches a recognised archive format, publishing atomically via rename.
// Idempotent: an existing extraction is reused.
func (c *Cache) maybeExtract(filePath, sha string) (string, error) {
	kind, ok := archiveKind(filePath)
	if !ok {
		return "", nil
	}

	finalDir := filepath.Join(c.extractedRoot(), sha)
	if st, err := os.Stat(finalDir); err == nil && st.IsDir() {
		return finalDir, nil
	}

	if err := os.MkdirAll(c.extractedRoot(), 0755); err != nil {
		return "", errs.New(errs.IOError, c.extractedRoot(), err)
	}
	tmpDir, err := os.MkdirTemp(c.extractedRoot(), sha+"-tmp-*")
	if err != nil {
		return "", errs.New(errs.IOError, c.extractedRoot(), err)
	}

	logx.Info("extracting %s", filepath.Base(filePath))
	if err := extractArchive(kind, filePath, tmpDir); err != nil {
		os.RemoveAll(tmpDir)
		return "", err
	}

	if err := os.Rename(tmpDir, finalDir); err != nil {
		if st, statErr := os.Stat(finalDir); statErr == nil && st.IsDir() {
			os.RemoveAll(tmpDir)
			return finalDir, nil
		}
		os.RemoveAll(tmpDir)
		return "", errs.New(errs.IOError, finalDir, err)
	}
	return finalDir, nil
}

func baseNameFromURL(rawURL string) string {
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		name = u.Path
	}
	name = path.Base(name)
	if name == "" || name == "." || name == "/" {
		name = "artifact"
	}
	return name
}
