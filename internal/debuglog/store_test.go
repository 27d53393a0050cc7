package debuglog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"bikestreets_backend/internal/directions"
	"bikestreets_backend/internal/events"
	"bikestreets_backend/internal/osrm"
	"bikestreets_backend/platform/apperr"
	"bikestreets_backend/platform/logger"
)

type testConfig struct {
	dir     string
	maxAge  time.Duration
	version int
}

func (c testConfig) GetDebugLogDir() string           { return c.dir }
func (c testConfig) GetDebugLogMaxAge() time.Duration { return c.maxAge }
func (c testConfig) GetDebugLogSchemaVersion() int    { return c.version }

func newTestStore(t *testing.T, dir string, version int) *Store {
	t.Helper()
	return NewStore(testConfig{dir: dir, version: version}, logger.Discard())
}

func sampleEntry(date time.Time) Entry {
	return Entry{
		Date: date,
		Request: Request{
			OriginName:                "Current Location",
			OriginPointLatitude:       39.7530,
			OriginPointLongitude:      -105.0413,
			DestinationName:           "Coffee Shop",
			DestinationPointLatitude:  39.7550,
			DestinationPointLongitude: -105.0000,
		},
		Response: osrm.RouteServiceResponse{
			Code: "Ok",
			Waypoints: []osrm.Waypoint{
				{Name: "Blake St", Location: []float64{-105.0413, 39.753}, Distance: 2.5, Hint: "h"},
			},
			Routes: []osrm.Route{
				{
					Distance: 1200,
					Duration: 300,
					Geometry: osrm.LineString{{Latitude: 39.753, Longitude: -105.0413}, {Latitude: 39.755, Longitude: -105}},
					Legs: []osrm.RouteLeg{{
						Distance: 1200, Duration: 300, Summary: "Blake",
						Steps: []osrm.RouteStep{{Distance: 1200, Duration: 300, Name: "Blake St", Mode: osrm.ModeCycling,
							Geometry: osrm.LineString{{Latitude: 39.753, Longitude: -105.0413}}}},
					}},
				},
				{Distance: 1500, Duration: 360},
			},
		},
	}
}

func assertEntryEqual(t *testing.T, got, want Entry) {
	t.Helper()
	if !got.Date.Equal(want.Date) {
		t.Errorf("date: expected %v, got %v", want.Date, got.Date)
	}
	if got.Request != want.Request {
		t.Errorf("request: expected %+v, got %+v", want.Request, got.Request)
	}
	if got.Response.Code != want.Response.Code || !reflect.DeepEqual(got.Response.Waypoints, want.Response.Waypoints) {
		t.Errorf("response header mismatch: %+v", got.Response)
	}
	if len(got.Response.Routes) != len(want.Response.Routes) {
		t.Fatalf("expected %d routes, got %d", len(want.Response.Routes), len(got.Response.Routes))
	}
	for i := range want.Response.Routes {
		if !got.Response.Routes[i].Equal(want.Response.Routes[i]) {
			t.Errorf("route %d differs after round trip", i)
		}
	}
}

func TestWriteThenListRoundTrips(t *testing.T) {
	store := newTestStore(t, t.TempDir(), 1)
	want := sampleEntry(time.Date(2023, 9, 8, 14, 5, 9, 0, time.UTC))

	path, err := store.Write(want)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if filepath.Base(path) != "2023-09-8@14-05-09.json" {
		t.Errorf("unexpected file name %q", filepath.Base(path))
	}

	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Path != path {
		t.Errorf("expected path %q, got %q", path, items[0].Path)
	}
	assertEntryEqual(t, items[0].Entry, want)
}

func TestWriteIsPrettyPrintedAndPrivate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	store := newTestStore(t, dir, 1)

	path, err := store.Write(sampleEntry(time.Date(2023, 9, 8, 14, 5, 9, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) < 4 || string(data[:4]) != "{\n  " {
		t.Errorf("expected indented JSON, got %q", data[:min(len(data), 20)])
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Errorf("expected dir perm 0700, got %o", perm)
	}
}

func TestSameSecondWriteOverwrites(t *testing.T) {
	store := newTestStore(t, t.TempDir(), 1)
	date := time.Date(2023, 9, 8, 14, 5, 9, 0, time.UTC)

	first := sampleEntry(date)
	second := sampleEntry(date.Add(300 * time.Millisecond))
	second.Request.DestinationName = "Bakery"

	if _, err := store.Write(first); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Write(second); err != nil {
		t.Fatal(err)
	}

	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 1 || items[0].Entry.Request.DestinationName != "Bakery" {
		t.Fatalf("expected the second write to win, got %+v", items)
	}
}

func TestConcurrentSameSecondWritesLeaveOneCompleteFile(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir, 1)
	date := time.Date(2023, 9, 8, 14, 5, 9, 0, time.UTC)

	// Run the one-time migration up front so every writer goes straight to
	// the entry file.
	if _, err := store.List(context.Background()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry := sampleEntry(date.Add(time.Duration(i) * time.Millisecond))
			entry.Request.DestinationName = fmt.Sprintf("Stop %d", i)
			if _, err := store.Write(entry); err != nil {
				t.Errorf("Write: %v", err)
			}
		}()
	}
	wg.Wait()

	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("expected every file to decode, got %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one entry, got %d", len(items))
	}

	names, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, de := range names {
		if strings.HasPrefix(de.Name(), ".write-") {
			t.Errorf("temp file %s left behind", de.Name())
		}
	}
}

func TestMigrationPurgesLegacyEntriesOnce(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "2023-01-1@00-00-00.json")
	if err := os.WriteFile(legacy, []byte(`{"date": 694224000}`), 0o600); err != nil {
		t.Fatal(err)
	}

	store := newTestStore(t, dir, 1)
	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected legacy entries to be purged, got %d", len(items))
	}
	if _, err := os.Stat(legacy); !os.IsNotExist(err) {
		t.Errorf("legacy file should be gone, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".schema-v1")); err != nil {
		t.Errorf("schema flag not written: %v", err)
	}

	if _, err := store.Write(sampleEntry(time.Date(2023, 9, 8, 14, 5, 9, 0, time.UTC))); err != nil {
		t.Fatal(err)
	}

	// A fresh store over the same directory must not purge again.
	reopened := newTestStore(t, dir, 1)
	items, err = reopened.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected entry to survive reopen, got %d", len(items))
	}

	// Bumping the schema version purges once more.
	bumped := newTestStore(t, dir, 2)
	items, _ = bumped.List(context.Background())
	if len(items) != 0 {
		t.Fatalf("expected purge on schema bump, got %d", len(items))
	}
}

func TestListIsolatesCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir, 1)

	for i, date := range []time.Time{
		time.Date(2023, 9, 8, 14, 5, 9, 0, time.UTC),
		time.Date(2023, 9, 10, 8, 0, 0, 0, time.UTC),
	} {
		entry := sampleEntry(date)
		entry.Request.OriginName = []string{"older", "newer"}[i]
		if _, err := store.Write(entry); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600); err != nil {
		t.Fatal(err)
	}

	items, err := store.List(context.Background())
	if !apperr.Is(err, apperr.KindDecodeFailure) {
		t.Fatalf("expected decode failure, got %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 readable items, got %d", len(items))
	}
	if items[0].Entry.Request.OriginName != "newer" || items[1].Entry.Request.OriginName != "older" {
		t.Errorf("expected newest first, got %q then %q", items[0].Entry.Request.OriginName, items[1].Entry.Request.OriginName)
	}
}

func TestCleanupRemovesOldEntries(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir, 1)
	now := time.Date(2023, 9, 20, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if _, err := store.Write(sampleEntry(now.Add(-8 * 24 * time.Hour))); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Write(sampleEntry(now.Add(-time.Hour))); err != nil {
		t.Fatal(err)
	}

	if removed := store.Cleanup(0); removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}

	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 1 || !items[0].Entry.Date.Equal(now.Add(-time.Hour)) {
		t.Fatalf("expected only the recent entry, got %+v", items)
	}
}

func TestCleanupUnreadableDirectoryIsBestEffort(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	store := newTestStore(t, file, 1)
	if removed := store.Cleanup(time.Hour); removed != 0 {
		t.Fatalf("expected 0, got %d", removed)
	}
}

type captureBus struct {
	published []events.Event
}

func (b *captureBus) Publish(_ context.Context, e events.Event) { b.published = append(b.published, e) }
func (b *captureBus) PublishSync(_ context.Context, e events.Event) error {
	b.published = append(b.published, e)
	return nil
}
func (b *captureBus) Subscribe(string, events.Handler) {}

func TestRecordWritesAndPublishes(t *testing.T) {
	store := newTestStore(t, t.TempDir(), 1)
	store.now = func() time.Time { return time.Date(2023, 9, 8, 14, 5, 9, 0, time.UTC) }
	bus := &captureBus{}
	store.SetEventBus(bus)

	entry := sampleEntry(time.Time{})
	query := directions.Query{
		Origin:          osrm.Coordinate{Latitude: 39.7530, Longitude: -105.0413},
		Destination:     osrm.Coordinate{Latitude: 39.7550, Longitude: -105.0000},
		OriginName:      "Current Location",
		DestinationName: "Coffee Shop",
	}
	if err := store.Record(context.Background(), query, &entry.Response); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	items, err := store.List(context.Background())
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one entry, got %d (%v)", len(items), err)
	}
	if items[0].Entry.Request != entry.Request {
		t.Errorf("unexpected request %+v", items[0].Entry.Request)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected one event, got %d", len(bus.published))
	}
	written, ok := bus.published[0].(events.DebugLogWritten)
	if !ok || written.Path != items[0].Path || written.Routes != 2 {
		t.Errorf("unexpected event %+v", bus.published[0])
	}
}
