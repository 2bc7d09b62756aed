package mesh

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ScannerPlacement is the payload published for one resolved scanner
type ScannerPlacement struct {
	ScannerID   int    `json:"scannerId"`
	Origin      Point  `json:"origin"`
	Orientation string `json:"orientation"`
	Timestamp   int64  `json:"timestamp"`
}

// MapSummary is the payload published for the assembled beacon map
type MapSummary struct {
	Anchor            int   `json:"anchor"`
	BeaconCount       int   `json:"beaconCount"`
	MaxOriginDistance int   `json:"maxOriginDistance"`
	Scanners          []int `json:"scanners"`
	Timestamp         int64 `json:"timestamp"`
}

// Publisher publishes assembled beacon maps to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
}

// NewPublisher creates a new map publisher. An empty prefix falls back to
// MQTT_PUBLISH_PREFIX and then DefaultPublishPrefix.
// If client is nil, publishing is disabled (for testing)
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = os.Getenv("MQTT_PUBLISH_PREFIX")
	}
	if prefix == "" {
		prefix = DefaultPublishPrefix
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        true, // late subscribers get the latest map
	}
}

// Prefix returns the topic prefix results are published under
func (p *Publisher) Prefix() string {
	return p.publishPrefix
}

// PublishBeaconMap publishes the map summary to <prefix>/summary and each
// scanner's placement to <prefix>/scanners/<id>
func (p *Publisher) PublishBeaconMap(m *BeaconMap, res *Resolution) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	if m == nil {
		return fmt.Errorf("publish: no beacon map")
	}

	now := time.Now().Unix()
	summary := MapSummary{
		Anchor:            m.Anchor,
		BeaconCount:       m.BeaconCount(),
		MaxOriginDistance: m.MaxOriginDistance(),
		Scanners:          m.ScannerIDs(),
		Timestamp:         now,
	}
	if err := p.publishJSON(p.summaryTopic(), summary); err != nil {
		log.Printf("[MQTT] error publishing summary: %v", err)
		return err
	}

	for _, id := range summary.Scanners {
		placement := ScannerPlacement{
			ScannerID: id,
			Origin:    m.Origins[id],
			Timestamp: now,
		}
		if res != nil {
			if t, ok := res.Transform(id); ok {
				placement.Orientation = t.Rotation.String()
			}
		}
		if err := p.publishJSON(p.scannerTopic(id), placement); err != nil {
			log.Printf("[MQTT] error publishing placement for scanner %d: %v", id, err)
			return err
		}
	}

	log.Printf("[MQTT] published map: %d beacons, %d scanners, max distance %d",
		summary.BeaconCount, len(summary.Scanners), summary.MaxOriginDistance)
	return nil
}

func (p *Publisher) summaryTopic() string {
	return p.publishPrefix + "/summary"
}

func (p *Publisher) scannerTopic(id int) string {
	return fmt.Sprintf("%s/scanners/%d", p.publishPrefix, id)
}

func (p *Publisher) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", topic, err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
