package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/magsand/smartcharge/core/charger"
	"github.com/magsand/smartcharge/core/events"
	"github.com/magsand/smartcharge/core/model"
	"github.com/magsand/smartcharge/core/price"
	"github.com/magsand/smartcharge/infra/logger"
	"github.com/magsand/smartcharge/internal/eventbus"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

type reading struct {
	value string
	at    time.Time
}

// Bridge connects the scheduler to the host automation platform over MQTT.
// It caches the latest collaborator readings, publishes charger commands,
// and forwards every state change onto the event bus so the control loop can
// re-evaluate.
type Bridge struct {
	cfg Config
	cli pahoClient
	bus eventbus.EventBus
	log logger.Logger
	now func() time.Time

	mu        sync.Mutex
	series    map[string][]model.PricePoint
	state     reading
	presence  reading
	remaining reading
	override  reading
	active    reading
}

// NewBridge connects to the broker, retrying with exponential backoff, and
// subscribes to every configured topic.
func NewBridge(cfg Config, bus eventbus.EventBus) (*Bridge, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("mqtt config: %w", err)
	}
	b := &Bridge{
		cfg:    cfg,
		bus:    bus,
		log:    logger.New("mqtt_bridge"),
		now:    time.Now,
		series: make(map[string][]model.PricePoint),
	}

	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	opts.OnConnect = func(c paho.Client) {
		b.log.Infof("MQTT connected")
		b.subscribeAll(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		b.log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		b.log.Warnf("reconnecting to MQTT broker")
	}

	cli := newMQTTClient(opts)
	connect := func() error {
		token := cli.Connect()
		token.Wait()
		return token.Error()
	}
	notify := func(err error, next time.Duration) {
		b.log.Warnf("broker connect failed: %v, retrying in %s", err, next)
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.ConnectRetries)
	if err := backoff.RetryNotify(connect, bo, notify); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	b.cli = cli
	return b, nil
}

func (b *Bridge) subscribeAll(c paho.Client) {
	sub := func(topic string, handler paho.MessageHandler) {
		if topic == "" {
			return
		}
		if token := c.Subscribe(topic, b.cfg.QoS, handler); token.Wait() && token.Error() != nil {
			b.log.Errorf("subscribe %s: %v", topic, token.Error())
		}
	}
	for id, topic := range b.cfg.Topics.Prices {
		id := id
		sub(topic, func(_ paho.Client, msg paho.Message) { b.onPrices(id, msg.Payload()) })
	}
	sub(b.cfg.Topics.ChargingState, func(_ paho.Client, msg paho.Message) { b.onState(msg.Payload()) })
	sub(b.cfg.Topics.Presence, func(_ paho.Client, msg paho.Message) { b.onPresence(msg.Payload()) })
	sub(b.cfg.Topics.Remaining, func(_ paho.Client, msg paho.Message) { b.onRemaining(msg.Payload()) })
	sub(b.cfg.Topics.Override, func(_ paho.Client, msg paho.Message) { b.onOverride(msg.Payload()) })
	sub(b.cfg.Topics.Active, func(_ paho.Client, msg paho.Message) { b.onActive(msg.Payload()) })
}

func (b *Bridge) onPrices(source string, payload []byte) {
	points, err := price.ParseRawSeries(payload)
	if err != nil {
		b.log.Errorf("price source %s: %v", source, err)
		b.mu.Lock()
		delete(b.series, source)
		b.mu.Unlock()
		return
	}
	b.mu.Lock()
	b.series[source] = points
	b.mu.Unlock()
	b.log.Debugf("price source %s updated, %d points", source, len(points))
	b.publish(events.PriceUpdateEvent{Source: source})
}

func (b *Bridge) onState(payload []byte) {
	v := strings.TrimSpace(string(payload))
	b.mu.Lock()
	b.state = reading{value: v, at: b.now()}
	b.mu.Unlock()
	b.publish(events.ReadbackEvent{Readback: b.parseReadback(v)})
}

func (b *Bridge) onPresence(payload []byte) {
	v := strings.TrimSpace(string(payload))
	b.mu.Lock()
	b.presence = reading{value: v, at: b.now()}
	b.mu.Unlock()
	b.publish(events.PresenceEvent{Present: strings.EqualFold(v, b.cfg.PresenceHome)})
}

func (b *Bridge) onRemaining(payload []byte) {
	v := strings.TrimSpace(string(payload))
	b.mu.Lock()
	b.remaining = reading{value: v, at: b.now()}
	b.mu.Unlock()
	if hours, err := parseHours(v); err == nil {
		b.publish(events.RemainingEvent{Hours: hours})
	} else {
		b.log.Warnf("bad remaining payload %q: %v", v, err)
	}
}

func (b *Bridge) onOverride(payload []byte) {
	v := strings.TrimSpace(string(payload))
	b.mu.Lock()
	b.override = reading{value: v, at: b.now()}
	b.mu.Unlock()
	b.publish(events.OverrideEvent{Value: v})
}

func (b *Bridge) onActive(payload []byte) {
	v := strings.TrimSpace(string(payload))
	b.mu.Lock()
	b.active = reading{value: v, at: b.now()}
	b.mu.Unlock()
	b.publish(events.ActiveEvent{Active: strings.EqualFold(v, "on")})
}

func (b *Bridge) publish(e eventbus.Event) {
	if b.bus != nil {
		b.bus.Publish(e)
	}
}

func (b *Bridge) parseReadback(v string) model.Readback {
	switch {
	case strings.EqualFold(v, b.cfg.States.Charging):
		return model.ReadbackCharging
	case strings.EqualFold(v, b.cfg.States.Stopped):
		return model.ReadbackStopped
	case strings.EqualFold(v, b.cfg.States.Complete):
		return model.ReadbackComplete
	default:
		return model.ReadbackUnknown
	}
}

func (b *Bridge) fresh(r reading) bool {
	if r.at.IsZero() {
		return false
	}
	return b.now().Sub(r.at) <= time.Duration(b.cfg.StalenessSeconds)*time.Second
}

// GetSeries returns the latest raw series for the given source id.
func (b *Bridge) GetSeries(_ context.Context, id string) ([]model.PricePoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	points, ok := b.series[id]
	if !ok || len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", price.ErrSourceUnavailable, id)
	}
	out := make([]model.PricePoint, len(points))
	copy(out, points)
	return out, nil
}

// ChargingState returns the charger's last reported state. A missing or
// stale reading is a readback timeout.
func (b *Bridge) ChargingState(_ context.Context) (model.Readback, error) {
	b.mu.Lock()
	r := b.state
	b.mu.Unlock()
	if !b.fresh(r) {
		return model.ReadbackUnknown, charger.ErrReadbackTimeout
	}
	return b.parseReadback(r.value), nil
}

// Presence reports whether the vehicle is at the charging location. Without
// a configured presence topic the vehicle is assumed present.
func (b *Bridge) Presence(_ context.Context) (bool, error) {
	if b.cfg.Topics.Presence == "" {
		return true, nil
	}
	b.mu.Lock()
	r := b.presence
	b.mu.Unlock()
	if !b.fresh(r) {
		return false, charger.ErrReadbackTimeout
	}
	return strings.EqualFold(r.value, b.cfg.PresenceHome), nil
}

// RemainingHours returns the live time-to-full-charge estimate.
func (b *Bridge) RemainingHours(_ context.Context) (float64, error) {
	b.mu.Lock()
	r := b.remaining
	b.mu.Unlock()
	if !b.fresh(r) {
		return 0, charger.ErrReadbackTimeout
	}
	return parseHours(r.value)
}

// OverrideFinish returns the manual latest-finish override, if set.
func (b *Bridge) OverrideFinish() (string, bool) {
	b.mu.Lock()
	r := b.override
	b.mu.Unlock()
	v := strings.TrimSpace(r.value)
	if v == "" || strings.EqualFold(v, "none") {
		return "", false
	}
	return v, true
}

// Active reports the operator kill-switch. It defaults to on when no active
// topic is configured or no message has arrived yet.
func (b *Bridge) Active() bool {
	if b.cfg.Topics.Active == "" {
		return true
	}
	b.mu.Lock()
	r := b.active
	b.mu.Unlock()
	if r.at.IsZero() {
		return true
	}
	return strings.EqualFold(r.value, "on")
}

// StartCharging publishes a turn_on command to the charger switch.
func (b *Bridge) StartCharging(ctx context.Context) error {
	return b.command(ctx, "turn_on")
}

// StopCharging publishes a turn_off command to the charger switch.
func (b *Bridge) StopCharging(ctx context.Context) error {
	return b.command(ctx, "turn_off")
}

func (b *Bridge) command(_ context.Context, action string) error {
	cmd := struct {
		CommandID string `json:"command_id"`
		Command   string `json:"command"`
		Timestamp int64  `json:"timestamp"`
	}{
		CommandID: uuid.NewString(),
		Command:   action,
		Timestamp: b.now().UnixMilli(),
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	token := b.cli.Publish(b.cfg.Topics.Command, b.cfg.QoS, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", action, err)
	}
	b.log.Infof("sent %s command %s", action, cmd.CommandID)
	return nil
}

// Status is the snapshot published after every evaluation pass, the analogue
// of a status entity on the automation platform.
type Status struct {
	State         string             `json:"state"`
	Reason        string             `json:"reason"`
	HoursNeeded   float64            `json:"hours_needed"`
	NextStart     string             `json:"next_start,omitempty"`
	NextStop      string             `json:"next_stop,omitempty"`
	Slots         []model.PricePoint `json:"slots"`
	ProjectedCost float64            `json:"projected_cost"`
	Feasible      bool               `json:"feasible"`
}

// PublishStatus publishes the snapshot retained on the status topic.
func (b *Bridge) PublishStatus(st Status) {
	if b.cfg.Topics.Status == "" {
		return
	}
	payload, err := json.Marshal(st)
	if err != nil {
		b.log.Errorf("encode status: %v", err)
		return
	}
	token := b.cli.Publish(b.cfg.Topics.Status, b.cfg.QoS, true, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		b.log.Errorf("publish status: %v", err)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (b *Bridge) Disconnect() {
	if b.cli != nil && b.cli.IsConnected() {
		b.cli.Disconnect(250)
	}
}

func parseHours(v string) (float64, error) {
	v = strings.Trim(v, `" `)
	if v == "" || strings.EqualFold(v, "unknown") || strings.EqualFold(v, "unavailable") {
		return 0, fmt.Errorf("remaining time unknown")
	}
	hours, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hours: %w", err)
	}
	return hours, nil
}
