package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Topics maps the collaborator entities to MQTT topics. Price topics are
// keyed by source id so the scheduler configuration can reference them by
// name.
type Topics struct {
	Command       string            `json:"command"`
	Status        string            `json:"status"`
	ChargingState string            `json:"charging_state"`
	Presence      string            `json:"presence"`
	Remaining     string            `json:"remaining"`
	Override      string            `json:"override"`
	Active        string            `json:"active"`
	Prices        map[string]string `json:"prices"`
}

// StateStrings maps the charger's payload vocabulary onto readbacks. Vendors
// disagree on capitalization, so matching is case-insensitive.
type StateStrings struct {
	Charging string `json:"charging"`
	Stopped  string `json:"stopped"`
	Complete string `json:"complete"`
}

// Config defines the connection parameters for the MQTT bridge.
type Config struct {
	Broker           string       `json:"broker"`
	ClientID         string       `json:"client_id"`
	Username         string       `json:"username"`
	Password         string       `json:"password"`
	UseTLS           bool         `json:"use_tls"`
	ClientCert       string       `json:"client_cert"`
	ClientKey        string       `json:"client_key"`
	CABundle         string       `json:"ca_bundle"`
	QoS              byte         `json:"qos"`
	ConnectRetries   uint64       `json:"connect_retries"`
	StalenessSeconds int          `json:"staleness_seconds"`
	PresenceHome     string       `json:"presence_home"`
	Topics           Topics       `json:"topics"`
	States           StateStrings `json:"states"`
	TLSConfig        *tls.Config  `json:"-"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "smartcharge"
	}
	if c.ConnectRetries == 0 {
		c.ConnectRetries = 5
	}
	if c.StalenessSeconds == 0 {
		c.StalenessSeconds = 900
	}
	if c.PresenceHome == "" {
		c.PresenceHome = "home"
	}
	if c.States.Charging == "" {
		c.States.Charging = "charging"
	}
	if c.States.Stopped == "" {
		c.States.Stopped = "stopped"
	}
	if c.States.Complete == "" {
		c.States.Complete = "complete"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.Topics.Command == "" {
		return fmt.Errorf("command topic is required")
	}
	if c.Topics.ChargingState == "" {
		return fmt.Errorf("charging_state topic is required")
	}
	if c.Topics.Remaining == "" {
		return fmt.Errorf("remaining topic is required")
	}
	if len(c.Topics.Prices) == 0 {
		return fmt.Errorf("at least one price topic is required")
	}
	return nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
