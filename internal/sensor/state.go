package sensor

import (
	"sync"
	"time"
)

// SensorValue is the last value set published for one sensor.
type SensorValue struct {
	Key       string        `json:"key"`
	ID        string        `json:"id"`
	Battery   *BatteryState `json:"battery,omitempty"`
	Light     *LightState   `json:"light,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// State is an in-memory Sink that keeps the latest value of every sensor.
type State struct {
	mu     sync.RWMutex
	values map[string]SensorValue
	now    func() time.Time
}

func NewState() *State {
	return &State{
		values: make(map[string]SensorValue),
		now:    time.Now,
	}
}

func (s *State) UpdateBattery(id Identity, state BatteryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[id.Key] = SensorValue{Key: id.Key, ID: id.ID.String(), Battery: &state, UpdatedAt: s.now()}
	return nil
}

func (s *State) UpdateLight(id Identity, state LightState) error {
	if state.Active != nil {
		active := *state.Active
		state.Active = &active
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[id.Key] = SensorValue{Key: id.Key, ID: id.ID.String(), Light: &state, UpdatedAt: s.now()}
	return nil
}

// Get returns the value stored under key.
func (s *State) Get(key string) (SensorValue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Snapshot returns a copy of all stored values keyed by sensor key.
func (s *State) Snapshot() map[string]SensorValue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]SensorValue, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
