package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/debforge/debforge/internal/errs"
	"github.com/debforge/debforge/lockfile"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return New(t.TempDir(), http.DefaultClient)
}

func newTestLockfile(t *testing.T) *lockfile.Lockfile {
	t.Helper()
	lf, err := lockfile.Load(filepath.Join(t.TempDir(), "ops2deb.lock.yml"))
	if err != nil {
		t.Fatalf("lockfile.Load: %v", err)
	}
	return lf
}

func TestFetchLockingModeRecordsHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	cache := newTestCache(t)
	lf := newTestLockfile(t)

	res, err := cache.Fetch(context.Background(), srv.URL+"/widget.txt", lf, ModeLocking)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.ExtractedDir != "" {
		t.Fatalf("ExtractedDir = %q, want empty for a non-archive", res.ExtractedDir)
	}
	data, err := os.ReadFile(res.FilePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("content = %q", data)
	}
	entry, ok := lf.Get(srv.URL + "/widget.txt")
	if !ok || entry.SHA256 != res.SHA256 {
		t.Fatalf("lockfile entry = %+v, ok=%v, want sha256 %s", entry, ok, res.SHA256)
	}
}

func TestFetchNormalModeFailsWithoutLockEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	cache := newTestCache(t)
	lf := newTestLockfile(t)

	_, err := cache.Fetch(context.Background(), srv.URL+"/x.txt", lf, ModeNormal)
	if err == nil {
		t.Fatal("expected a HashMissing error")
	}
	if got := errs.KindOf(err); got != errs.HashMissing {
		t.Fatalf("KindOf(err) = %q, want HashMissing", got)
	}
}

func TestFetchHashMismatchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	cache := newTestCache(t)
	lf := newTestLockfile(t)
	lf.Put(srv.URL+"/x.txt", "0000000000000000000000000000000000000000000000000000000000000000")

	_, err := cache.Fetch(context.Background(), srv.URL+"/x.txt", lf, ModeNormal)
	if err == nil {
		t.Fatal("expected a HashMismatch error")
	}
	if got := errs.KindOf(err); got != errs.HashMismatch {
		t.Fatalf("KindOf(err) = %q, want HashMismatch", got)
	}
}

func TestFetchUsesCacheWithoutRedownloading(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("cached content"))
	}))
	defer srv.Close()

	cache := newTestCache(t)
	lf := newTestLockfile(t)

	if _, err := cache.Fetch(context.Background(), srv.URL+"/x.txt", lf, ModeLocking); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	if _, err := cache.Fetch(context.Background(), srv.URL+"/x.txt", lf, ModeNormal); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("got %d HTTP requests, want 1 (second call should hit the cache)", hits)
	}
}

func TestFetchSingleFlightCoalescesConcurrentCallers(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("concurrent content"))
	}))
	defer srv.Close()

	cache := newTestCache(t)
	lf := newTestLockfile(t)

	const n = 8
	var wg sync.WaitGroup
	errsCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Fetch(context.Background(), srv.URL+"/race.txt", lf, ModeLocking)
			errsCh <- err
		}()
	}
	wg.Wait()
	close(errsCh)
	for err := range errsCh {
		if err != nil {
			t.Fatalf("concurrent Fetch: %v", err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("got %d HTTP requests across %d goroutines, want 1", got, n)
	}
}

func TestFetchClientErrorDoesNotRetry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cache := newTestCache(t)
	lf := newTestLockfile(t)

	_, err := cache.Fetch(context.Background(), srv.URL+"/missing.txt", lf, ModeLocking)
	if err == nil {
		t.Fatal("expected a NetworkError for a 404")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("got %d requests, want exactly 1 (no retry on 4xx)", got)
	}
}
