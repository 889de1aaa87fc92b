package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/m3rciful/relaybot/core/logger"
)

// File keeps one namespace as a flat JSON object on disk, for example
// {"1001": "2024-01-01"}. The whole object is cached in memory and rewritten
// through a temp file and rename on every mutation.
type File struct {
	path   string
	mu     sync.Mutex
	values map[string]string
}

// OpenFile loads (or creates) the JSON file for namespace inside dir.
func OpenFile(dir, namespace string) (*File, error) {
	if dir == "" {
		return nil, errors.New("kv: file store dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kv: create dir %s: %w", dir, err)
	}
	f := &File{
		path:   filepath.Join(dir, namespace+".json"),
		values: make(map[string]string),
	}
	if err := f.load(); err != nil {
		return nil, err
	}
	logger.Info(context.Background(), "store", "file.open",
		slog.String("status", "ok"),
		slog.String("path", f.path),
		slog.Int("count", len(f.values)),
	)
	return f, nil
}

func (f *File) load() error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return f.flush()
	}
	if err != nil {
		return fmt.Errorf("kv: read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	// Values are decoded loosely so that a hand-edited file with a
	// non-string value degrades into a corrupt record, not a startup failure.
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("kv: decode %s: %w", f.path, err)
	}
	for k, v := range raw {
		switch x := v.(type) {
		case string:
			f.values[k] = x
		case map[string]any:
			// {"until": "..."} records written by older deployments
			if until, ok := x["until"].(string); ok {
				f.values[k] = until
				continue
			}
			f.values[k] = fmt.Sprint(x)
		default:
			f.values[k] = fmt.Sprint(x)
		}
	}
	return nil
}

func (f *File) flush() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", f.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("kv: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("kv: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("kv: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("kv: rename %s: %w", f.path, err)
	}
	return nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Get returns the value stored for key.
func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

// Set overwrites the value for key and persists the file.
func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.values[key]
	f.values[key] = value
	if err := f.flush(); err != nil {
		if had {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

// Delete removes key and persists the file when something changed.
func (f *File) Delete(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.values[key]
	if !ok {
		return false, nil
	}
	delete(f.values, key)
	if err := f.flush(); err != nil {
		f.values[key] = prev
		return false, err
	}
	return true, nil
}

// CompareAndSwap stores value if key holds old and persists the file.
func (f *File) CompareAndSwap(_ context.Context, key, old, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.values[key]; !ok || cur != old {
		return false, nil
	}
	f.values[key] = value
	if err := f.flush(); err != nil {
		f.values[key] = old
		return false, err
	}
	return true, nil
}

// CompareAndDelete removes key if it holds old and persists the file.
func (f *File) CompareAndDelete(_ context.Context, key, old string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.values[key]; !ok || cur != old {
		return false, nil
	}
	delete(f.values, key)
	if err := f.flush(); err != nil {
		f.values[key] = old
		return false, err
	}
	return true, nil
}

// AdvanceDate implements DateAdvancer under the file lock.
func (f *File) AdvanceDate(_ context.Context, key, date string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.values[key]
	if !shouldAdvance(cur, ok, date) {
		return false, nil
	}
	f.values[key] = date
	if err := f.flush(); err != nil {
		if ok {
			f.values[key] = cur
		} else {
			delete(f.values, key)
		}
		return false, err
	}
	return true, nil
}
