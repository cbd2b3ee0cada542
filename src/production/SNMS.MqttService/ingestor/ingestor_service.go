package ingestor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/swarmsense/snms.server/src/production/SNMS.Config"
	ingest "gitlab.com/swarmsense/snms.server/src/production/SNMS.Ingest"
	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

const (
	valuesTopic    = "sensors/+/values"
	hidValuesTopic = "companies/+/sensors_hid/+/values"
)

// Ingestor consumes device value submissions from the broker and feeds them
// into the ingestion pipeline. It also serves as the broker publisher for
// alert notifications raised by those submissions.
type Ingestor struct {
	cfg       config.MQTTConfig
	companies interfaces.CompanyRepository
	logger    *logger.Logger

	service *ingest.Service
	client  mqtt.Client
}

func New(cfg config.MQTTConfig, companies interfaces.CompanyRepository, log *logger.Logger) *Ingestor {
	return &Ingestor{
		cfg:       cfg,
		companies: companies,
		logger:    log,
	}
}

// Start connects to the broker and subscribes to the value topics. The
// normalizer is attached here because alert evaluation publishes back
// through this ingestor.
func (i *Ingestor) Start(service *ingest.Service) error {
	i.service = service

	opts := mqtt.NewClientOptions().
		AddBroker(i.cfg.GetBrokerURL()).
		SetClientID(i.cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(i.cfg.KeepAlive).
		SetPingTimeout(i.cfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if i.cfg.BrokerUser != "" {
		opts.SetUsername(i.cfg.BrokerUser)
		opts.SetPassword(i.cfg.BrokerPass)
	}

	if i.cfg.UseTLS {
		tlsCfg, err := tlsConfig(i.cfg.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.WithError(err).Warn("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		for topic, handler := range map[string]mqtt.MessageHandler{
			valuesTopic:    i.onValuesMessage,
			hidValuesTopic: i.onHIDValuesMessage,
		} {
			subscribeTopic := topic
			if i.cfg.SharedGroup != "" {
				subscribeTopic = fmt.Sprintf("$share/%s/%s", i.cfg.SharedGroup, topic)
			}
			i.logger.WithField("topic", subscribeTopic).Info("Subscribing")
			if token := c.Subscribe(subscribeTopic, 1, handler); token.Wait() && token.Error() != nil {
				i.logger.WithError(token.Error()).Error("Subscribe failed")
			}
		}
	}

	i.client = mqtt.NewClient(opts)
	if token := i.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (i *Ingestor) Stop() {
	if i.client != nil && i.client.IsConnected() {
		i.client.Disconnect(500)
	}
}

func (i *Ingestor) IsConnected() bool {
	return i.client != nil && i.client.IsConnected()
}

// PublishJSON implements the publisher used for alert notifications.
func (i *Ingestor) PublishJSON(topic string, payload interface{}) error {
	if i.client == nil || !i.client.IsConnected() {
		return errors.New("not connected")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := i.client.Publish(topic, 1, false, data)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// onValuesMessage handles sensors/{uid}/values.
func (i *Ingestor) onValuesMessage(_ mqtt.Client, m mqtt.Message) {
	parts := strings.Split(m.Topic(), "/")
	if len(parts) != 3 {
		i.logger.WithField("topic", m.Topic()).Warn("Unexpected topic format")
		return
	}
	uid := parts[1]

	raw, fromServer := parsePayload(m.Payload())
	if fromServer {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := i.service.PostSensorValueByUID(ctx, uid, raw, ingest.Options{FromMQTT: true}); err != nil {
		i.logger.WithSensor(uid).WithError(err).Error("Failed to ingest broker values")
	}
}

// onHIDValuesMessage handles companies/{company_uid}/sensors_hid/{hid}/values.
func (i *Ingestor) onHIDValuesMessage(_ mqtt.Client, m mqtt.Message) {
	parts := strings.Split(m.Topic(), "/")
	if len(parts) != 5 {
		i.logger.WithField("topic", m.Topic()).Warn("Unexpected topic format")
		return
	}
	companyUID, hid := parts[1], parts[3]

	raw, fromServer := parsePayload(m.Payload())
	if fromServer {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	company, err := i.companies.GetByUID(ctx, companyUID)
	if err != nil {
		i.logger.WithError(err).Error("Failed to resolve company")
		return
	}
	if company == nil {
		i.logger.WithField("company_uid", companyUID).Warn("Unknown company")
		return
	}

	if _, err := i.service.PostSensorValueByHID(ctx, company.ID, hid, raw, ingest.Options{FromMQTT: true}); err != nil {
		i.logger.WithField("hid", hid).WithError(err).Error("Failed to ingest broker values")
	}
}

// parsePayload converts a JSON payload into a raw submission. The second
// return reports the server-echo marker; those messages must be dropped to
// avoid a publish/subscribe loop.
func parsePayload(payload []byte) (snmsmodels.RawSubmission, bool) {
	raw := snmsmodels.RawSubmission{Fields: make(map[string]snmsmodels.RawField)}

	var body map[string]interface{}
	if err := json.Unmarshal(payload, &body); err != nil {
		return raw, false
	}

	if fromServer, ok := body["fromServer"].(bool); ok && fromServer {
		return raw, true
	}

	for name, v := range body {
		if name == "fromServer" {
			continue
		}
		if name == "time" {
			if s, ok := v.(string); ok {
				raw.Time = s
			}
			continue
		}
		switch n := v.(type) {
		case float64:
			value := n
			raw.Fields[name] = snmsmodels.RawField{Number: &value}
		case string:
			if parsed, err := strconv.ParseFloat(n, 64); err == nil {
				raw.Fields[name] = snmsmodels.RawField{Number: &parsed}
			}
		}
	}
	return raw, false
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
