package publisher

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/swarmsense/snms.server/src/production/SNMS.Config"
	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

// MQTTPublisher is the broker-facing publisher used for configuration
// pushes, value mirrors and alert notifications.
type MQTTPublisher struct {
	client mqtt.Client
	logger *logger.Logger
}

var _ interfaces.Publisher = (*MQTTPublisher)(nil)

// Connect builds the paho client and connects. Auto-reconnect is on, so a
// broker outage after startup degrades to dropped publishes instead of
// failing requests.
func Connect(cfg *config.MQTTConfig, log *logger.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.GetBrokerURL()).
		SetClientID(cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(cfg.KeepAlive).
		SetPingTimeout(cfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if cfg.BrokerUser != "" {
		opts.SetUsername(cfg.BrokerUser)
		opts.SetPassword(cfg.BrokerPass)
	}

	if cfg.UseTLS {
		tlsCfg, err := tlsConfig(cfg.CACertPath)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	}
	opts.OnConnect = func(_ mqtt.Client) {
		log.Info("MQTT connected")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return &MQTTPublisher{client: client, logger: log}, nil
}

// PublishJSON marshals payload and publishes it at QoS 1.
func (p *MQTTPublisher) PublishJSON(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}

	token := p.client.Publish(topic, 1, false, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

func (p *MQTTPublisher) IsConnected() bool {
	return p.client != nil && p.client.IsConnected()
}

func (p *MQTTPublisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(500)
	}
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file %s", caFile)
	}
	cfg.RootCAs = pool
	return cfg, nil
}
