package reporter

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"solis-monitor/config"
	"solis-monitor/internal/sensor"
	"solis-monitor/internal/solis"
)

// DefaultInterval is the delay between the end of one poll and the start of
// the next.
const DefaultInterval = time.Minute

// ErrMissingCredentials is returned by Start when the credentials or the
// station id are not configured. No poll is ever scheduled in that case.
var ErrMissingCredentials = config.ErrMissingCredentials

// Fetcher retrieves the current telemetry of a station.
type Fetcher interface {
	StationDetail(ctx context.Context, stationID string) (*solis.StationDetail, error)
}

// Store persists successful readings.
type Store interface {
	SaveReading(detail *solis.StationDetail, polledAt time.Time) error
}

type Reporter struct {
	client      Fetcher
	credentials config.SolisConfig
	publishers  []sensor.Publisher
	sink        sensor.Sink
	db          Store
	interval    time.Duration
	logger      *log.Logger
	debug       bool

	mu         sync.RWMutex
	latest     *solis.StationDetail
	lastPoll   time.Time
	lastErr    error
	successes  uint64
	failures   uint64
	collecting bool
	cancel     context.CancelFunc
	done       chan struct{}
}

type ReporterConfig struct {
	Client      Fetcher
	Credentials config.SolisConfig
	Publishers  []sensor.Publisher
	Sink        sensor.Sink
	// Database is optional.
	Database Store
	Interval time.Duration
	Logger   *log.Logger
	Debug    bool
}

// Stats is a point-in-time view of the poll loop.
type Stats struct {
	Collecting bool
	LastPoll   time.Time
	LastError  error
	Successes  uint64
	Failures   uint64
}

func NewReporter(cfg ReporterConfig) *Reporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Reporter{
		client:      cfg.Client,
		credentials: cfg.Credentials,
		publishers:  cfg.Publishers,
		sink:        cfg.Sink,
		db:          cfg.Database,
		interval:    interval,
		logger:      logger,
		debug:       cfg.Debug,
	}
}

func (r *Reporter) debugf(format string, args ...any) {
	if r.debug {
		r.logger.Printf("debug: "+format, args...)
	}
}

// Start publishes the initial sensor values and then polls until ctx is
// cancelled or Stop is called. It returns ErrMissingCredentials right away
// when the configuration is incomplete.
func (r *Reporter) Start(ctx context.Context) error {
	for _, cat := range []sensor.Category{sensor.CategoryBattery, sensor.CategorySolar, sensor.CategoryNet, sensor.CategoryLoad} {
		r.debugf("Enable %s sensor: %s", cat, yesNo(r.hasCategory(cat)))
	}

	for _, p := range r.publishers {
		if err := p.Init(r.sink); err != nil {
			r.logger.Printf("Error initialising %s sensor: %v", p.Category(), err)
		}
	}

	if err := r.credentials.Validate(); err != nil {
		r.logger.Printf("Missing keyId, keySecret, or stationId in config")
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	defer close(done)

	r.mu.Lock()
	if r.collecting {
		r.mu.Unlock()
		cancel()
		return errors.New("reporter already started")
	}
	r.collecting = true
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	defer func() {
		cancel()
		r.mu.Lock()
		r.collecting = false
		r.mu.Unlock()
	}()

	r.logger.Printf("Starting reporter for station %s with interval %s", r.credentials.StationID, r.interval)

	for {
		r.Poll(ctx)

		// The delay runs from the end of the poll, so cycles never overlap.
		timer := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Println("Reporter stopped")
			return nil
		case <-timer.C:
		}
	}
}

// Stop cancels the poll loop and waits for it to return.
func (r *Reporter) Stop() {
	r.mu.RLock()
	cancel, done := r.cancel, r.done
	r.mu.RUnlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Poll runs one cycle: fetch, publish to every enabled sensor, persist.
// On failure nothing is published and the sinks keep their values.
func (r *Reporter) Poll(ctx context.Context) (*solis.StationDetail, error) {
	polledAt := time.Now()

	detail, err := r.client.StationDetail(ctx, r.credentials.StationID)
	if err != nil {
		r.logger.Printf("No data found: %v", err)
		r.record(nil, polledAt, err)
		return nil, err
	}

	r.debugf("Solis data retrieved")

	for _, p := range r.publishers {
		r.debugf("Setting %s information", p.Category())
		if err := p.Update(r.sink, detail); err != nil {
			r.logger.Printf("Error publishing %s sensor: %v", p.Category(), err)
		}
	}

	if r.db != nil {
		if err := r.db.SaveReading(detail, polledAt); err != nil {
			r.logger.Printf("Error saving reading: %v", err)
		}
	}

	r.record(detail, polledAt, nil)

	r.debugf("Polled: Battery=%.0f%% Solar=%.1f%s Net=%.1f%s", detail.BatteryPercent,
		detail.Power, detail.PowerStr, detail.Psum, detail.PsumStr)

	return detail, nil
}

func (r *Reporter) record(detail *solis.StationDetail, at time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastPoll = at
	r.lastErr = err
	if err != nil {
		r.failures++
		return
	}
	r.successes++
	r.latest = detail
}

func (r *Reporter) hasCategory(cat sensor.Category) bool {
	for _, p := range r.publishers {
		if p.Category() == cat {
			return true
		}
	}
	return false
}

// GetLatestData returns the last successful reading or nil.
func (r *Reporter) GetLatestData() *solis.StationDetail {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

func (r *Reporter) IsCollecting() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collecting
}

func (r *Reporter) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Collecting: r.collecting,
		LastPoll:   r.lastPoll,
		LastError:  r.lastErr,
		Successes:  r.successes,
		Failures:   r.failures,
	}
}

// Categories lists the enabled sensor categories.
func (r *Reporter) Categories() []string {
	names := make([]string, 0, len(r.publishers))
	for _, p := range r.publishers {
		names = append(names, string(p.Category()))
	}
	return names
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
