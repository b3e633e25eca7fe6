package notify

// Notifier delivers operator-facing messages, e.g. when the scheduler enters
// deadline-rescue mode or required price data stays unavailable.
type Notifier interface {
	Notify(title, message string) error
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Notify(string, string) error { return nil }
