// Package lockfile implements the URL→{sha256, timestamp} mapping that is
// kept alongside a configuration file, decoupled from it (§3, §4.3).
package lockfile

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/debforge/debforge/internal/errs"
	"go.yaml.in/yaml/v3"
)

// Entry is one lockfile record.
type Entry struct {
	SHA256    string    `yaml:"sha256"`
	Timestamp time.Time `yaml:"timestamp"`
}

// Lockfile is a mutex-guarded URL→Entry map with atomic on-disk persistence.
// A single Lockfile instance serialises concurrent put/remove calls from
// multiple goroutines, per §4.3/§5; cross-process races are tolerated
// (last writer wins, reconciled on the next run).
type Lockfile struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
}

// Load reads path if present, returning an empty Lockfile otherwise (the
// `lock` command is expected to populate a missing file).
func Load(path string) (*Lockfile, error) {
	lf := &Lockfile{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return lf, nil
	}
	if err != nil {
		return nil, errs.New(errs.IOError, path, err)
	}

	var raw map[string]Entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errs.New(errs.ParseError, path, err)
	}
	if raw != nil {
		lf.entries = raw
	}
	return lf, nil
}

// Get returns the entry for url, if any.
func (l *Lockfile) Get(url string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[url]
	return e, ok
}

// Put records or overwrites the entry for url with the current time.
func (l *Lockfile) Put(url, sha256 string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[url] = Entry{SHA256: sha256, Timestamp: time.Now().UTC()}
}

// PutAt is Put with an explicit timestamp, used by migrate to give every
// entry it synthesises from a legacy configuration the same timestamp.
func (l *Lockfile) PutAt(url, sha256 string, ts time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[url] = Entry{SHA256: sha256, Timestamp: ts}
}

// Remove deletes the entry for url, if present.
func (l *Lockfile) Remove(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, url)
}

// Has reports whether url has a recorded entry.
func (l *Lockfile) Has(url string) bool {
	_, ok := l.Get(url)
	return ok
}

// PruneExcept removes every entry whose URL is not in keep, returning the
// removed URLs. Used by the updater to drop stale entries (§4.7 step 4).
func (l *Lockfile) PruneExcept(keep map[string]bool) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var removed []string
	for url := range l.entries {
		if !keep[url] {
			removed = append(removed, url)
			delete(l.entries, url)
		}
	}
	sort.Strings(removed)
	return removed
}

// Save writes the lockfile atomically (temp file + fsync + rename), keys
// sorted lexicographically, file ending with a trailing newline (§6).
func (l *Lockfile) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var node yaml.Node
	node.Kind = yaml.MappingNode
	node.Tag = "!!map"
	for _, k := range keys {
		e := l.entries[k]
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: k}
		var valNode yaml.Node
		if err := valNode.Encode(e); err != nil {
			return errs.New(errs.IOError, l.path, err)
		}
		node.Content = append(node.Content, keyNode, &valNode)
	}

	data, err := yaml.Marshal(&node)
	if err != nil {
		return errs.New(errs.IOError, l.path, err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}

	return atomicWrite(l.path, data)
}

// atomicWrite writes data to a sibling temp file, fsyncs it, and renames it
// over path (§8 invariant 4: never observe a truncated file).
func atomicWrite(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.tmp-%d", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errs.New(errs.IOError, path, err)
	}
	f, err := os.OpenFile(tmp, os.O_WRONLY, 0644)
	if err != nil {
		return errs.New(errs.IOError, path, err)
	}
	syncErr := f.Sync()
	f.Close()
	if syncErr != nil {
		os.Remove(tmp)
		return errs.New(errs.IOError, path, syncErr)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.New(errs.IOError, path, err)
	}
	return nil
}

// URLs returns every URL currently recorded, for diagnostics/tests.
func (l *Lockfile) URLs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.entries))
	for k := range l.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
