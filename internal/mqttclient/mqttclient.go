// internal/mqttclient/mqttclient.go
package mqttclient

import (
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Client struct {
	client mqtt.Client
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
}

// NewClientFromEnv conecta no broker configurado via MQTT_HOST/MQTT_PORT/
// MQTT_USERNAME/MQTT_PASSWORD/MQTT_CLIENT_ID. MQTT_HOST vazio desliga o
// side-channel: devolve (nil, nil) e os publishers viram no-op.
func NewClientFromEnv(defaultClientID string) (*Client, error) {
	host := os.Getenv("MQTT_HOST")
	if host == "" {
		return nil, nil
	}

	cfg := Config{
		Host:     host,
		Port:     getenvInt("MQTT_PORT", 1883),
		Username: os.Getenv("MQTT_USERNAME"),
		Password: os.Getenv("MQTT_PASSWORD"),
		ClientID: getenv("MQTT_CLIENT_ID", defaultClientID),
	}

	return NewClient(cfg)
}

func NewClient(cfg Config) (*Client, error) {
	broker := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	cli := mqtt.NewClient(opts)
	token := cli.Connect()
	if ok := token.WaitTimeout(10 * time.Second); !ok {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}

	return &Client{client: cli}, nil
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if c == nil {
		return nil
	}
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

func (c *Client) Close() {
	if c != nil && c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			return x
		}
	}
	return def
}
