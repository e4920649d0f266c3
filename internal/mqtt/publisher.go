package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"solarwatch/internal/alert"
	"solarwatch/internal/health"
)

// Publisher mirrors each cycle's health verdict and alerts onto MQTT so
// home automation can react to fleet state.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	enabled     bool
	log         zerolog.Logger
}

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Enabled     bool
}

func NewPublisher(cfg PublisherConfig, log zerolog.Logger) (*Publisher, error) {
	logger := log.With().Str("component", "mqtt").Logger()

	if !cfg.Enabled {
		return &Publisher{enabled: false, log: logger}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			logger.Warn().Err(err).Msg("mqtt connection lost")
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			logger.Info().Msg("mqtt connected")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client:      client,
		topicPrefix: cfg.TopicPrefix,
		enabled:     true,
		log:         logger,
	}, nil
}

// PublishHealth publishes per-inverter state topics plus a retained
// system status JSON.
func (p *Publisher) PublishHealth(sys health.SystemHealth) error {
	if !p.enabled {
		return nil
	}

	for _, name := range health.SortedNames(sys.PerInverter) {
		inv := sys.PerInverter[name]

		state := "ok"
		if !inv.OK {
			state = inv.Kind.String()
		}
		p.publish(fmt.Sprintf("%s/inverter/%s/state", p.topicPrefix, name), state, false)

		if inv.Reading != nil && inv.Reading.PacW != nil {
			p.publish(fmt.Sprintf("%s/inverter/%s/power", p.topicPrefix, name),
				fmt.Sprintf("%.1f", *inv.Reading.PacW), false)
		}
	}

	payload, err := json.Marshal(sys)
	if err != nil {
		return fmt.Errorf("failed to marshal system health: %w", err)
	}
	p.publish(fmt.Sprintf("%s/system/health", p.topicPrefix), string(payload), true)

	return nil
}

// PublishAlerts emits each dispatched alert as a JSON event.
func (p *Publisher) PublishAlerts(alerts []alert.Alert) error {
	if !p.enabled {
		return nil
	}

	for _, a := range alerts {
		payload, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}
		p.publish(fmt.Sprintf("%s/alerts/%s", p.topicPrefix, a.InverterName), string(payload), false)
	}

	return nil
}

func (p *Publisher) publish(topic, payload string, retained bool) {
	token := p.client.Publish(topic, 0, retained, payload)
	token.Wait()
	if token.Error() != nil {
		p.log.Warn().Str("topic", topic).Err(token.Error()).Msg("mqtt publish failed")
	}
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
