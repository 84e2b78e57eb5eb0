package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"solis-monitor/internal/sensor"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher is a sensor.Sink that exposes every sensor to Home Assistant via
// MQTT discovery and retained JSON state topics.
type Publisher struct {
	client          client
	topicPrefix     string
	discoveryPrefix string
	stationID       string
	enabled         bool

	mu         sync.Mutex
	discovered map[string]bool
}

type PublisherConfig struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	TopicPrefix     string
	DiscoveryPrefix string
	StationID       string
	Enabled         bool
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{enabled: false}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Printf("MQTT connection lost: %v", err)
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.Println("MQTT connected")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newPublisher(c, cfg), nil
}

func newPublisher(c client, cfg PublisherConfig) *Publisher {
	discoveryPrefix := cfg.DiscoveryPrefix
	if discoveryPrefix == "" {
		discoveryPrefix = "homeassistant"
	}
	return &Publisher{
		client:          c,
		topicPrefix:     cfg.TopicPrefix,
		discoveryPrefix: discoveryPrefix,
		stationID:       cfg.StationID,
		enabled:         true,
		discovered:      make(map[string]bool),
	}
}

// entity is one Home Assistant entity backed by a sensor's state topic.
type entity struct {
	Component     string
	Suffix        string
	Name          string
	DeviceClass   string
	Unit          string
	ValueTemplate string
}

func batteryEntities() []entity {
	return []entity{
		{"sensor", "level", "Level", "battery", "%", "{{ value_json.level }}"},
		{"binary_sensor", "low", "Low", "battery", "", "{{ 'ON' if value_json.low else 'OFF' }}"},
		{"binary_sensor", "charging", "Charging", "battery_charging", "", "{{ 'ON' if value_json.charging else 'OFF' }}"},
	}
}

func lightEntities(withActive bool) []entity {
	entities := []entity{
		{"sensor", "level", "Level", "illuminance", "lx", "{{ value_json.level }}"},
	}
	if withActive {
		entities = append(entities, entity{"binary_sensor", "active", "Active", "power", "", "{{ 'ON' if value_json.active else 'OFF' }}"})
	}
	return entities
}

func (p *Publisher) UpdateBattery(id sensor.Identity, state sensor.BatteryState) error {
	if !p.enabled {
		return nil
	}
	if err := p.ensureDiscovery(id, batteryEntities()); err != nil {
		return err
	}
	return p.publishState(id, state)
}

func (p *Publisher) UpdateLight(id sensor.Identity, state sensor.LightState) error {
	if !p.enabled {
		return nil
	}
	if err := p.ensureDiscovery(id, lightEntities(state.Active != nil)); err != nil {
		return err
	}
	return p.publishState(id, state)
}

// StateTopic is where the JSON state of a sensor is published.
func (p *Publisher) StateTopic(id sensor.Identity) string {
	return fmt.Sprintf("%s/%s/%s/state", p.topicPrefix, p.stationID, id.Key)
}

func (p *Publisher) publishState(id sensor.Identity, state interface{}) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal %s state: %w", id.Key, err)
	}

	topic := p.StateTopic(id)
	token := p.client.Publish(topic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

// ensureDiscovery sends the discovery configs of id once per process.
func (p *Publisher) ensureDiscovery(id sensor.Identity, entities []entity) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.discovered[id.Key] {
		return nil
	}

	for _, e := range entities {
		topic, payload, err := p.discoveryMessage(id, e)
		if err != nil {
			return err
		}
		token := p.client.Publish(topic, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("failed to publish discovery to %s: %w", topic, token.Error())
		}
	}

	p.discovered[id.Key] = true
	return nil
}

func (p *Publisher) discoveryMessage(id sensor.Identity, e entity) (string, []byte, error) {
	// Stable per station and entity, so Home Assistant never duplicates it.
	uniqueID := uuid.NewSHA1(id.ID, []byte(p.stationID+"/"+e.Suffix)).String()
	objectID := fmt.Sprintf("%s_%s", id.Key, e.Suffix)
	topic := fmt.Sprintf("%s/%s/solis_%s/%s/config", p.discoveryPrefix, e.Component, p.stationID, objectID)

	config := map[string]interface{}{
		"name":                  fmt.Sprintf("%s %s", id.Name, e.Name),
		"unique_id":             uniqueID,
		"object_id":             "solis_" + objectID,
		"state_topic":           p.StateTopic(id),
		"value_template":        e.ValueTemplate,
		"json_attributes_topic": p.StateTopic(id),
		"device": map[string]interface{}{
			"identifiers":  []string{"solis_" + p.stationID},
			"name":         "Solis Station " + p.stationID,
			"manufacturer": "Solis",
			"model":        "SolisCloud",
		},
	}

	if e.DeviceClass != "" {
		config["device_class"] = e.DeviceClass
	}
	if e.Unit != "" {
		config["unit_of_measurement"] = e.Unit
		config["state_class"] = "measurement"
	}

	payload, err := json.Marshal(config)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal discovery for %s: %w", objectID, err)
	}
	return topic, payload, nil
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
}
