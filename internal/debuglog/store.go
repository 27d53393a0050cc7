package debuglog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"bikestreets_backend/internal/directions"
	"bikestreets_backend/internal/events"
	"bikestreets_backend/internal/osrm"
	"bikestreets_backend/platform/apperr"
	"bikestreets_backend/platform/config"
	"bikestreets_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

const (
	// FileNameLayout names entry files: yyyy-MM-d@HH-mm-ss.
	FileNameLayout = "2006-01-2@15-04-05"

	// DefaultMaxAge is the cleanup horizon when none is configured.
	DefaultMaxAge = 7 * 24 * time.Hour

	fileExt      = ".json"
	decodeLimit  = 8
	dirPerm      = 0o700
	filePerm     = 0o600
	flagFileStem = ".schema-v"
	tmpPattern   = ".write-*"
)

// Store reads and writes debug log entries in a single directory.
type Store struct {
	dir           string
	maxAge        time.Duration
	schemaVersion int
	log           *logger.Logger
	now           func() time.Time
	bus           events.Bus

	migrateMu sync.Mutex
	migrated  bool
}

// NewStore creates a store for the configured directory. The directory is
// created lazily on first write.
func NewStore(cfg config.DebugLogConfig, log *logger.Logger) *Store {
	maxAge := cfg.GetDebugLogMaxAge()
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	version := cfg.GetDebugLogSchemaVersion()
	if version < 1 {
		version = 1
	}
	return &Store{
		dir:           cfg.GetDebugLogDir(),
		maxAge:        maxAge,
		schemaVersion: version,
		log:           log.WithComponent("debuglog"),
		now:           time.Now,
	}
}

// SetEventBus makes Record publish a DebugLogWritten event per written file.
// Call before the store is shared.
func (s *Store) SetEventBus(bus events.Bus) {
	s.bus = bus
}

// Dir returns the directory entries are stored in.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path for an entry dated t.
func (s *Store) Path(t time.Time) string {
	return filepath.Join(s.dir, t.Format(FileNameLayout)+fileExt)
}

// Write persists entry and returns its path. A second entry written within
// the same second replaces the first.
func (s *Store) Write(entry Entry) (string, error) {
	const op = "debuglog.Write"

	if err := s.ensureMigrated(); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "encode entry", err).WithOp(op)
	}

	path := s.Path(entry.Date)
	if err := writeAtomic(s.dir, path, data); err != nil {
		return "", apperr.IO("write entry", err).WithOp(op)
	}
	s.log.DebugLogEvent("write", path, nil)
	return path, nil
}

// writeAtomic stages data in a temp file next to path and renames it into
// place, so concurrent writers to one path leave exactly one complete file.
func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Record writes an entry for a completed route request and announces the
// file on the event bus, if one is set. It implements directions.Recorder.
func (s *Store) Record(ctx context.Context, query directions.Query, response *osrm.RouteServiceResponse) error {
	entry := Entry{
		Date:    s.now(),
		Request: RequestFromQuery(query),
	}
	if response != nil {
		entry.Response = *response
	}

	path, err := s.Write(entry)
	if err != nil {
		s.log.DebugLogEvent("write", path, err)
		return err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.DebugLogWritten{
			BaseEvent:       events.NewBaseEvent(),
			Path:            path,
			OriginName:      entry.Request.OriginName,
			DestinationName: entry.Request.DestinationName,
			Routes:          len(entry.Response.Routes),
		})
	}
	return nil
}

// List decodes every entry in the directory, newest first. A file that fails
// to read or decode is skipped; such failures are returned joined as a
// KindDecodeFailure error alongside the entries that did decode.
func (s *Store) List(ctx context.Context) ([]Item, error) {
	const op = "debuglog.List"

	if err := s.ensureMigrated(); err != nil {
		return nil, err
	}

	paths, err := s.entryPaths()
	if err != nil {
		return nil, apperr.IO("read directory", err).WithOp(op)
	}

	items := make([]*Item, len(paths))
	failures := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(decodeLimit)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := readEntry(path)
			if err != nil {
				failures[i] = fmt.Errorf("%s: %w", filepath.Base(path), err)
				return nil
			}
			items[i] = &Item{Path: path, Entry: entry}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	slices.SortStableFunc(out, func(a, b Item) int {
		return b.Entry.Date.Compare(a.Entry.Date)
	})

	if joined := errors.Join(failures...); joined != nil {
		s.log.DebugLogEvent("list", s.dir, joined)
		return out, apperr.DecodeFailure("some debug log entries could not be read", joined).WithOp(op)
	}
	return out, nil
}

// Cleanup removes entries dated before now-maxAge. Files that cannot be
// decoded are aged by modification time. A non-positive maxAge uses the
// configured horizon. Failures are logged and skipped; the number of removed
// files is returned.
func (s *Store) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = s.maxAge
	}
	if err := s.ensureMigrated(); err != nil {
		s.log.DebugLogEvent("cleanup", s.dir, err)
		return 0
	}

	paths, err := s.entryPaths()
	if err != nil {
		s.log.DebugLogEvent("cleanup", s.dir, err)
		return 0
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, path := range paths {
		date, ok := entryDate(path)
		if !ok || !date.Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			s.log.DebugLogEvent("cleanup", path, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("debug log cleanup", "removed", removed, "max_age", maxAge.String())
	}
	return removed
}

// ensureMigrated runs the one-time schema purge: when the flag file for the
// current schema version is missing, every existing entry is deleted before
// the flag is written. A failed purge is retried on the next call.
func (s *Store) ensureMigrated() error {
	const op = "debuglog.migrate"

	s.migrateMu.Lock()
	defer s.migrateMu.Unlock()
	if s.migrated {
		return nil
	}

	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return apperr.IO("create directory", err).WithOp(op)
	}

	flag := filepath.Join(s.dir, fmt.Sprintf("%s%d", flagFileStem, s.schemaVersion))
	if _, err := os.Stat(flag); err == nil {
		s.migrated = true
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return apperr.IO("stat schema flag", err).WithOp(op)
	}

	paths, err := s.entryPaths()
	if err != nil {
		return apperr.IO("read directory", err).WithOp(op)
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return apperr.IO("purge entry", err).WithOp(op)
		}
	}
	if err := os.WriteFile(flag, []byte(s.now().UTC().Format(time.RFC3339)+"\n"), filePerm); err != nil {
		return apperr.IO("write schema flag", err).WithOp(op)
	}

	s.log.Info("debug log schema migrated", "version", s.schemaVersion, "purged", len(paths))
	s.migrated = true
	return nil
}

func (s *Store) entryPaths() ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	paths := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileExt) {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, de.Name()))
	}
	return paths, nil
}

func readEntry(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func entryDate(path string) (time.Time, bool) {
	if entry, err := readEntry(path); err == nil && !entry.Date.IsZero() {
		return entry.Date, true
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

var _ directions.Recorder = (*Store)(nil)
