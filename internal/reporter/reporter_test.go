package reporter

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"solis-monitor/config"
	"solis-monitor/internal/sensor"
	"solis-monitor/internal/solis"
)

const stationJSON = `{"success":true,"code":"0","msg":"success","data":{
	"batteryPercent":20,"batteryPower":-150,"batteryPowerStr":"W",
	"batteryChargeEnergy":0,"power":1200,"powerStr":"W","porwerPercent":0.45,
	"psum":300,"psumStr":"W"}}`

var credentials = config.SolisConfig{KeyID: "key", KeySecret: "secret", StationID: "1298491919448631809"}

type memoryStore struct {
	mu    sync.Mutex
	saved []*solis.StationDetail
}

func (m *memoryStore) SaveReading(d *solis.StationDetail, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, d)
	return nil
}

// stationServer answers with stationJSON while ok is set and 500 otherwise.
func stationServer(t *testing.T, ok *atomic.Bool, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !ok.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(stationJSON))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStart_MissingStationID(t *testing.T) {
	var ok atomic.Bool
	var hits atomic.Int32
	ok.Store(true)
	server := stationServer(t, &ok, &hits)

	var buf bytes.Buffer
	state := sensor.NewState()
	r := NewReporter(ReporterConfig{
		Client:      solis.NewClient(server.URL, "key", "secret"),
		Credentials: config.SolisConfig{KeyID: "key", KeySecret: "secret"},
		Publishers:  sensor.Enabled(true, true, true, true),
		Sink:        state,
		Interval:    10 * time.Millisecond,
		Logger:      log.New(&buf, "", 0),
	})

	err := r.Start(context.Background())
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("Start() error = %v, want ErrMissingCredentials", err)
	}

	if n := hits.Load(); n != 0 {
		t.Errorf("server received %d requests, want 0", n)
	}
	if n := strings.Count(buf.String(), "Missing keyId, keySecret, or stationId in config"); n != 1 {
		t.Errorf("configuration error logged %d times, want 1:\n%s", n, buf.String())
	}
	if r.IsCollecting() {
		t.Error("IsCollecting() = true after configuration error")
	}
	// Sensors are still created with their initial values.
	if len(state.Snapshot()) != 4 {
		t.Errorf("Snapshot() has %d sensors, want 4", len(state.Snapshot()))
	}
}

func TestPoll_FailureKeepsPreviousValues(t *testing.T) {
	var ok atomic.Bool
	var hits atomic.Int32
	ok.Store(true)
	server := stationServer(t, &ok, &hits)

	var buf bytes.Buffer
	state := sensor.NewState()
	store := &memoryStore{}
	r := NewReporter(ReporterConfig{
		Client:      solis.NewClient(server.URL, "key", "secret"),
		Credentials: credentials,
		Publishers:  sensor.Enabled(true, true, true, true),
		Sink:        state,
		Database:    store,
		Logger:      log.New(&buf, "", 0),
	})

	if _, err := r.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	before := state.Snapshot()
	if len(before) != 4 {
		t.Fatalf("Snapshot() has %d sensors, want 4", len(before))
	}

	ok.Store(false)
	_, err := r.Poll(context.Background())
	if !errors.Is(err, solis.ErrRemoteRejected) {
		t.Fatalf("Poll() error = %v, want ErrRemoteRejected", err)
	}

	after := state.Snapshot()
	for key, v := range before {
		if after[key].UpdatedAt != v.UpdatedAt {
			t.Errorf("%s sensor was updated by a failed poll", key)
		}
	}
	if !strings.Contains(buf.String(), "No data found") {
		t.Errorf("log = %q, want a no data error", buf.String())
	}

	if r.GetLatestData() == nil || r.GetLatestData().BatteryPercent != 20 {
		t.Errorf("GetLatestData() = %+v, want previous reading", r.GetLatestData())
	}
	if len(store.saved) != 1 {
		t.Errorf("saved %d readings, want 1", len(store.saved))
	}

	stats := r.Stats()
	if stats.Successes != 1 || stats.Failures != 1 || stats.LastError == nil {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestPoll_DisabledCategoriesUntouched(t *testing.T) {
	var ok atomic.Bool
	var hits atomic.Int32
	ok.Store(true)
	server := stationServer(t, &ok, &hits)

	state := sensor.NewState()
	r := NewReporter(ReporterConfig{
		Client:      solis.NewClient(server.URL, "key", "secret"),
		Credentials: credentials,
		Publishers:  sensor.Enabled(true, false, true, false),
		Sink:        state,
		Logger:      log.New(&bytes.Buffer{}, "", 0),
	})

	if _, err := r.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	snap := state.Snapshot()
	if _, ok := snap["solar"]; ok {
		t.Error("solar sensor published while disabled")
	}
	if _, ok := snap["load"]; ok {
		t.Error("load sensor published while disabled")
	}
	if net, ok := snap["net"]; !ok || net.Light.Name != "Net: 300.000W" {
		t.Errorf("net sensor = %+v", net)
	}
}

type countingFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFetcher) StationDetail(ctx context.Context, stationID string) (*solis.StationDetail, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &solis.StationDetail{BatteryPercent: 50, Psum: 10, PsumStr: "W"}, nil
}

func TestStart_ReschedulesAfterFailure(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("connection refused")}
	r := NewReporter(ReporterConfig{
		Client:      fetcher,
		Credentials: credentials,
		Publishers:  sensor.Enabled(true, true, true, true),
		Sink:        sensor.NewState(),
		Interval:    5 * time.Millisecond,
		Logger:      log.New(&bytes.Buffer{}, "", 0),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- r.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for fetcher.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := fetcher.calls.Load(); n < 3 {
		t.Fatalf("fetcher called %d times, want at least 3", n)
	}

	r.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after Stop()")
	}

	if r.IsCollecting() {
		t.Error("IsCollecting() = true after Stop()")
	}
}

func TestStart_ContextCancel(t *testing.T) {
	fetcher := &countingFetcher{}
	r := NewReporter(ReporterConfig{
		Client:      fetcher,
		Credentials: credentials,
		Sink:        sensor.NewState(),
		Interval:    time.Hour,
		Logger:      log.New(&bytes.Buffer{}, "", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for fetcher.calls.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after cancel")
	}

	// One poll, then the hour-long wait was cut short.
	if n := fetcher.calls.Load(); n != 1 {
		t.Errorf("fetcher called %d times, want 1", n)
	}
}
