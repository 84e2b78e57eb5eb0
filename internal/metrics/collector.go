package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"solis-monitor/internal/reporter"
	"solis-monitor/internal/sensor"
)

// StatsSource reports poll loop counters.
type StatsSource interface {
	Stats() reporter.Stats
}

// Collector implements prometheus.Collector over the current sensor values.
type Collector struct {
	state     *sensor.State
	stats     StatsSource
	stationID string

	batteryLevel    *prometheus.Desc
	batteryLow      *prometheus.Desc
	batteryCharging *prometheus.Desc
	sensorLevel     *prometheus.Desc
	netActive       *prometheus.Desc
	polls           *prometheus.Desc
	lastPoll        *prometheus.Desc
}

// NewCollector creates a collector; stats may be nil.
func NewCollector(state *sensor.State, stats StatsSource, stationID string) *Collector {
	labels := prometheus.Labels{"station_id": stationID}
	return &Collector{
		state:     state,
		stats:     stats,
		stationID: stationID,
		batteryLevel: prometheus.NewDesc(
			"solis_battery_level_percent",
			"Battery charge level in percent",
			nil, labels,
		),
		batteryLow: prometheus.NewDesc(
			"solis_battery_low",
			"1 when the battery charge level is low",
			nil, labels,
		),
		batteryCharging: prometheus.NewDesc(
			"solis_battery_charging",
			"1 when the battery is charging",
			nil, labels,
		),
		sensorLevel: prometheus.NewDesc(
			"solis_sensor_level",
			"Published light-level value of a power sensor",
			[]string{"sensor"}, labels,
		),
		netActive: prometheus.NewDesc(
			"solis_net_active",
			"1 while power is exported to the grid",
			nil, labels,
		),
		polls: prometheus.NewDesc(
			"solis_polls_total",
			"SolisCloud polls by result",
			[]string{"result"}, labels,
		),
		lastPoll: prometheus.NewDesc(
			"solis_last_poll_timestamp_seconds",
			"Unix time of the last poll attempt",
			nil, labels,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.batteryLevel
	ch <- c.batteryLow
	ch <- c.batteryCharging
	ch <- c.sensorLevel
	ch <- c.netActive
	ch <- c.polls
	ch <- c.lastPoll
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for key, v := range c.state.Snapshot() {
		if b := v.Battery; b != nil {
			ch <- prometheus.MustNewConstMetric(c.batteryLevel, prometheus.GaugeValue, b.Level)
			ch <- prometheus.MustNewConstMetric(c.batteryLow, prometheus.GaugeValue, boolToFloat(b.Low))
			ch <- prometheus.MustNewConstMetric(c.batteryCharging, prometheus.GaugeValue, boolToFloat(b.Charging))
		}
		if l := v.Light; l != nil {
			ch <- prometheus.MustNewConstMetric(c.sensorLevel, prometheus.GaugeValue, l.Level, key)
			if l.Active != nil {
				ch <- prometheus.MustNewConstMetric(c.netActive, prometheus.GaugeValue, boolToFloat(*l.Active))
			}
		}
	}

	if c.stats == nil {
		return
	}
	stats := c.stats.Stats()
	ch <- prometheus.MustNewConstMetric(c.polls, prometheus.CounterValue, float64(stats.Successes), "success")
	ch <- prometheus.MustNewConstMetric(c.polls, prometheus.CounterValue, float64(stats.Failures), "failure")
	if !stats.LastPoll.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastPoll, prometheus.GaugeValue, float64(stats.LastPoll.Unix()))
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
