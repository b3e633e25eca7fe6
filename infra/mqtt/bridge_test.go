package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/magsand/smartcharge/core/charger"
	"github.com/magsand/smartcharge/core/events"
	"github.com/magsand/smartcharge/core/model"
	"github.com/magsand/smartcharge/infra/logger"
	"github.com/magsand/smartcharge/internal/eventbus"
)

type mockToken struct {
	err error
}

func (t *mockToken) Wait() bool                     { return true }
func (t *mockToken) WaitTimeout(time.Duration) bool { return true }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *mockToken) Error() error { return t.err }

type mockClient struct {
	connected   bool
	connectErr  error
	published   []publishCall
	publishErr  error
	subscribed  []string
	disconnects int
}

type publishCall struct {
	topic    string
	retained bool
	payload  []byte
}

func (m *mockClient) IsConnected() bool { return m.connected }

func (m *mockClient) Connect() paho.Token {
	if m.connectErr == nil {
		m.connected = true
	}
	return &mockToken{err: m.connectErr}
}

func (m *mockClient) Disconnect(uint) {
	m.connected = false
	m.disconnects++
}

func (m *mockClient) Publish(topic string, _ byte, retained bool, payload interface{}) paho.Token {
	m.published = append(m.published, publishCall{topic: topic, retained: retained, payload: payload.([]byte)})
	return &mockToken{err: m.publishErr}
}

func (m *mockClient) Subscribe(topic string, _ byte, _ paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, topic)
	return &mockToken{}
}

func testConfig() Config {
	cfg := Config{
		Broker: "tcp://localhost:1883",
		Topics: Topics{
			Command:       "ha/charger/set",
			Status:        "ha/charger/status",
			ChargingState: "ha/charger/state",
			Presence:      "ha/tracker/car",
			Remaining:     "ha/charger/time_left",
			Override:      "ha/charger/override",
			Active:        "ha/charger/active",
			Prices:        map[string]string{"today": "ha/prices/today"},
		},
	}
	cfg.SetDefaults()
	return cfg
}

func testBridge(cfg Config, cli pahoClient, bus eventbus.EventBus) *Bridge {
	return &Bridge{
		cfg:    cfg,
		cli:    cli,
		bus:    bus,
		log:    logger.NopLogger{},
		now:    time.Now,
		series: make(map[string][]model.PricePoint),
	}
}

func TestNewBridgeConnectsAndRetries(t *testing.T) {
	orig := newMQTTClient
	defer func() { newMQTTClient = orig }()
	cli := &mockClient{}
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return cli }

	b, err := NewBridge(testConfig(), nil)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	if !cli.connected {
		t.Fatal("not connected")
	}
	b.Disconnect()
	if cli.disconnects != 1 {
		t.Fatalf("disconnects %d", cli.disconnects)
	}
}

func TestNewBridgeConnectFailure(t *testing.T) {
	orig := newMQTTClient
	defer func() { newMQTTClient = orig }()
	cfg := testConfig()
	cfg.ConnectRetries = 1
	newMQTTClient = func(*paho.ClientOptions) pahoClient {
		return &mockClient{connectErr: errors.New("refused")}
	}
	if _, err := NewBridge(cfg, nil); err == nil {
		t.Fatal("expected connect error")
	}
}

func TestOnPricesCachesSeriesAndPublishes(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe()
	b := testBridge(testConfig(), &mockClient{}, bus)

	b.onPrices("today", []byte(`[
		{"start": "2025-03-10T00:00:00+01:00", "end": "2025-03-10T01:00:00+01:00", "value": 1.5},
		{"start": "2025-03-10T01:00:00+01:00", "end": "2025-03-10T02:00:00+01:00", "value": 2.0}
	]`))

	points, err := b.GetSeries(context.Background(), "today")
	if err != nil {
		t.Fatalf("get series: %v", err)
	}
	if len(points) != 2 || points[0].Price != 1.5 {
		t.Fatalf("points %+v", points)
	}
	select {
	case e := <-sub:
		if ev, ok := e.(events.PriceUpdateEvent); !ok || ev.Source != "today" {
			t.Fatalf("event %v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no price update event")
	}
}

func TestOnPricesBadPayloadDropsSource(t *testing.T) {
	b := testBridge(testConfig(), &mockClient{}, nil)
	b.onPrices("today", []byte(`[{"start": "2025-03-10T00:00:00Z", "end": "2025-03-10T01:00:00Z", "value": 1}]`))
	b.onPrices("today", []byte(`not json`))
	if _, err := b.GetSeries(context.Background(), "today"); err == nil {
		t.Fatal("expected missing source after bad payload")
	}
}

func TestChargingStateFreshAndStale(t *testing.T) {
	b := testBridge(testConfig(), &mockClient{}, nil)
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }

	b.onState([]byte("Charging"))
	rb, err := b.ChargingState(context.Background())
	if err != nil || rb != model.ReadbackCharging {
		t.Fatalf("readback %v err %v", rb, err)
	}

	clock = clock.Add(16 * time.Minute)
	rb, err = b.ChargingState(context.Background())
	if !errors.Is(err, charger.ErrReadbackTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if rb != model.ReadbackUnknown {
		t.Fatalf("readback %v", rb)
	}
}

func TestChargingStateNeverReceived(t *testing.T) {
	b := testBridge(testConfig(), &mockClient{}, nil)
	if _, err := b.ChargingState(context.Background()); !errors.Is(err, charger.ErrReadbackTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestParseReadbackVocabulary(t *testing.T) {
	b := testBridge(testConfig(), &mockClient{}, nil)
	cases := map[string]model.Readback{
		"charging": model.ReadbackCharging,
		"CHARGING": model.ReadbackCharging,
		"stopped":  model.ReadbackStopped,
		"complete": model.ReadbackComplete,
		"weird":    model.ReadbackUnknown,
	}
	for in, want := range cases {
		if got := b.parseReadback(in); got != want {
			t.Errorf("parseReadback(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPresence(t *testing.T) {
	b := testBridge(testConfig(), &mockClient{}, nil)
	b.onPresence([]byte("home"))
	present, err := b.Presence(context.Background())
	if err != nil || !present {
		t.Fatalf("present %v err %v", present, err)
	}
	b.onPresence([]byte("not_home"))
	present, err = b.Presence(context.Background())
	if err != nil || present {
		t.Fatalf("present %v err %v", present, err)
	}
}

func TestPresenceWithoutTopicAssumesPresent(t *testing.T) {
	cfg := testConfig()
	cfg.Topics.Presence = ""
	b := testBridge(cfg, &mockClient{}, nil)
	present, err := b.Presence(context.Background())
	if err != nil || !present {
		t.Fatalf("present %v err %v", present, err)
	}
}

func TestRemainingHours(t *testing.T) {
	b := testBridge(testConfig(), &mockClient{}, nil)
	b.onRemaining([]byte("2.5"))
	hours, err := b.RemainingHours(context.Background())
	if err != nil || hours != 2.5 {
		t.Fatalf("hours %v err %v", hours, err)
	}
	b.onRemaining([]byte("unknown"))
	if _, err := b.RemainingHours(context.Background()); err == nil {
		t.Fatal("expected error for unknown remaining")
	}
}

func TestOverrideFinish(t *testing.T) {
	b := testBridge(testConfig(), &mockClient{}, nil)
	if _, ok := b.OverrideFinish(); ok {
		t.Fatal("override set before any message")
	}
	b.onOverride([]byte("16:00"))
	v, ok := b.OverrideFinish()
	if !ok || v != "16:00" {
		t.Fatalf("override %q %v", v, ok)
	}
	b.onOverride([]byte("None"))
	if _, ok := b.OverrideFinish(); ok {
		t.Fatal("override should clear on None")
	}
}

func TestActiveDefaultsOn(t *testing.T) {
	b := testBridge(testConfig(), &mockClient{}, nil)
	if !b.Active() {
		t.Fatal("active should default on")
	}
	b.onActive([]byte("off"))
	if b.Active() {
		t.Fatal("active should be off")
	}
	b.onActive([]byte("on"))
	if !b.Active() {
		t.Fatal("active should be on")
	}
}

func TestStartChargingPublishesCommand(t *testing.T) {
	cli := &mockClient{}
	b := testBridge(testConfig(), cli, nil)
	if err := b.StartCharging(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(cli.published) != 1 {
		t.Fatalf("published %d", len(cli.published))
	}
	call := cli.published[0]
	if call.topic != "ha/charger/set" || call.retained {
		t.Fatalf("call %+v", call)
	}
	var cmd struct {
		CommandID string `json:"command_id"`
		Command   string `json:"command"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(call.payload, &cmd); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if cmd.Command != "turn_on" || cmd.CommandID == "" || cmd.Timestamp == 0 {
		t.Fatalf("command %+v", cmd)
	}
}

func TestStopChargingPublishError(t *testing.T) {
	cli := &mockClient{publishErr: errors.New("broker gone")}
	b := testBridge(testConfig(), cli, nil)
	if err := b.StopCharging(context.Background()); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestPublishStatusRetained(t *testing.T) {
	cli := &mockClient{}
	b := testBridge(testConfig(), cli, nil)
	b.PublishStatus(Status{State: "charging", HoursNeeded: 2})
	if len(cli.published) != 1 {
		t.Fatalf("published %d", len(cli.published))
	}
	call := cli.published[0]
	if call.topic != "ha/charger/status" || !call.retained {
		t.Fatalf("call %+v", call)
	}
	var st Status
	if err := json.Unmarshal(call.payload, &st); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if st.State != "charging" || st.HoursNeeded != 2 {
		t.Fatalf("status %+v", st)
	}
}
