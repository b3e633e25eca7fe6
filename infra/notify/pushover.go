package notify

import (
	"fmt"

	"github.com/gregdel/pushover"

	corenotify "github.com/magsand/smartcharge/core/notify"
)

// Config defines the Pushover credentials.
type Config struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	UserKey string `json:"user_key"`
}

// Validate checks mandatory fields when enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Token == "" || c.UserKey == "" {
		return fmt.Errorf("pushover requires token and user_key")
	}
	return nil
}

// PushoverNotifier delivers operator messages through Pushover.
type PushoverNotifier struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
}

// New creates a PushoverNotifier, or a Nop notifier when disabled.
func New(cfg Config) (corenotify.Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return corenotify.Nop{}, nil
	}
	return &PushoverNotifier{
		app:       pushover.New(cfg.Token),
		recipient: pushover.NewRecipient(cfg.UserKey),
	}, nil
}

// Notify sends the message with the given title.
func (n *PushoverNotifier) Notify(title, message string) error {
	_, err := n.app.SendMessage(pushover.NewMessageWithTitle(message, title), n.recipient)
	return err
}
