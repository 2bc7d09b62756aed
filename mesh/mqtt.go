package mesh

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageHandler is called when a scan report message is received.
// err is non-nil when the topic or payload could not be decoded.
type MessageHandler func(scannerID int, scan Scan, err error)

// MQTTClient manages the MQTT connection and the scan report subscription
type MQTTClient struct {
	client         mqtt.Client
	config         *Config
	messageHandler MessageHandler
	onConnected    func()
	isConnected    bool
	mu             sync.RWMutex
}

// InitMQTT creates and connects an MQTT client with the provided configuration.
// Environment variables (MQTT_BROKER, MQTT_CLIENT_ID, MQTT_USERNAME,
// MQTT_PASSWORD) override the config file. If no broker is configured at all,
// MQTT is disabled and this returns nil, nil.
func InitMQTT(config *Config, handler MessageHandler) (*MQTTClient, error) {
	if config == nil {
		return nil, fmt.Errorf("MQTT: no configuration provided")
	}

	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		broker = config.MQTT.Broker
	}
	if broker == "" {
		log.Println("[MQTT] disabled: no broker configured")
		return nil, nil
	}

	client := &MQTTClient{
		config:         config,
		messageHandler: handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "scanmesh"
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false) // keep subscriptions across reconnects
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	go client.connectWithRetry()

	return client, nil
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("[MQTT] connecting to broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] connected")
				c.setConnected(true)
				return
			}
			log.Printf("[MQTT] connection failed: %v", token.Error())
		} else {
			log.Println("[MQTT] connection timeout")
		}

		log.Printf("[MQTT] retrying in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect runs the connected hook and subscribes to the scan topic.
// Called on every (re)connect.
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	c.mu.RLock()
	hook := c.onConnected
	c.mu.RUnlock()
	if hook != nil {
		hook()
	}

	topic := c.scanTopic()
	log.Printf("[MQTT] subscribing to %s", topic)
	token := client.Subscribe(topic, 1, c.handleScanMessage)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("[MQTT] error subscribing to %s: %v", topic, token.Error())
		return
	}
	log.Printf("[MQTT] subscribed to %s", topic)
}

// onConnectionLost is called when the connection drops; auto-reconnect retries
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("[MQTT] reconnecting...")
}

func (c *MQTTClient) scanTopic() string {
	if c.config != nil && c.config.MQTT.ScanTopic != "" {
		return c.config.MQTT.ScanTopic
	}
	return DefaultScanTopic
}

// handleScanMessage decodes one scan report and forwards it to the handler
func (c *MQTTClient) handleScanMessage(client mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	log.Printf("[MQTT] received scan report (topic: %s, size: %d bytes)", msg.Topic(), len(payload))

	if c.messageHandler == nil {
		return
	}

	id, err := ScannerIDFromTopic(msg.Topic())
	if err != nil {
		log.Printf("[MQTT] %v", err)
		c.messageHandler(-1, Scan{}, err)
		return
	}

	scan, err := DecodeScanPayload(id, payload)
	if err != nil {
		log.Printf("[MQTT] error decoding scan report for scanner %d: %v", id, err)
		c.messageHandler(id, Scan{}, err)
		return
	}
	c.messageHandler(id, scan, nil)
}

// ScannerIDFromTopic extracts the scanner id from the last topic segment.
// Example: "scanmesh/scans/7" -> 7
func ScannerIDFromTopic(topic string) (int, error) {
	idx := strings.LastIndex(topic, "/")
	segment := topic[idx+1:]
	id, err := strconv.Atoi(segment)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("topic %q does not end in a scanner id", topic)
	}
	return id, nil
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// SetOnConnected registers fn to run after every (re)connect, before the scan
// subscription is made
func (c *MQTTClient) SetOnConnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnected = fn
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] disconnecting from broker...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient around a provided mqtt.Client.
// Used by tests with MockClient.
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler MessageHandler) *MQTTClient {
	return &MQTTClient{
		client:         client,
		config:         config,
		messageHandler: handler,
	}
}
