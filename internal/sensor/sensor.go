package sensor

import (
	"errors"

	"github.com/google/uuid"

	"solis-monitor/internal/solis"
)

type Category string

const (
	CategoryBattery Category = "battery"
	CategorySolar   Category = "solar"
	CategoryNet     Category = "net"
	CategoryLoad    Category = "load"
)

// Identity names one sensor instance. ID is stable across restarts so a sink
// keeps updating the same entity.
type Identity struct {
	Key  string
	Name string
	ID   uuid.UUID
}

var (
	BatteryIdentity = Identity{Key: "battery", Name: "Home battery", ID: uuid.MustParse("5a6e6b0e-2f1d-4c53-9a41-77e1c0b3d501")}
	SolarIdentity   = Identity{Key: "solar", Name: "Solar Panel", ID: uuid.MustParse("db2b81f8-4d79-4cb4-992b-5071c0bc7892")}
	NetIdentity     = Identity{Key: "net", Name: "Net usage", ID: uuid.MustParse("40aac825-7851-45ac-becc-1ccf77a75dbb")}
	LoadIdentity    = Identity{Key: "load", Name: "Usage", ID: uuid.MustParse("0f965642-adf4-40bf-a4fa-dd947c384cb5")}
)

// BatteryState is the value set of a battery gauge.
type BatteryState struct {
	Level    float64 `json:"level"`
	Low      bool    `json:"low"`
	Charging bool    `json:"charging"`
	Name     string  `json:"name"`
}

// LightState is the value set of a light-level gauge. Active is only
// carried by sensors that expose an active flag.
type LightState struct {
	Level  float64 `json:"level"`
	Name   string  `json:"name"`
	Active *bool   `json:"active,omitempty"`
}

// Sink accepts sensor updates.
type Sink interface {
	UpdateBattery(id Identity, state BatteryState) error
	UpdateLight(id Identity, state LightState) error
}

// Publisher derives the values of one sensor category from a reading.
type Publisher interface {
	Category() Category
	// Init publishes the values a freshly created sensor starts with.
	Init(sink Sink) error
	Update(sink Sink, detail *solis.StationDetail) error
}

// MultiSink forwards every update to all of its sinks.
type MultiSink []Sink

func (m MultiSink) UpdateBattery(id Identity, state BatteryState) error {
	var errs []error
	for _, s := range m {
		if err := s.UpdateBattery(id, state); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) UpdateLight(id Identity, state LightState) error {
	var errs []error
	for _, s := range m {
		if err := s.UpdateLight(id, state); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Enabled returns the publishers switched on by the given flags, in a fixed
// battery, solar, net, load order.
func Enabled(battery, solar, net, load bool) []Publisher {
	var pubs []Publisher
	if battery {
		pubs = append(pubs, Battery{})
	}
	if solar {
		pubs = append(pubs, Solar{})
	}
	if net {
		pubs = append(pubs, Net{})
	}
	if load {
		pubs = append(pubs, Load{})
	}
	return pubs
}
