// Package notify provides the alert sink the sweep fires into. Delivery
// is best effort: no retries, no confirmation.
package notify

import "log"

// LogNotifier writes alerts to the process log. It stands in for a real
// push channel; a sink that cannot deliver simply drops the alert.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(title, body string) {
	log.Printf("ALERT: %s (%s)", title, body)
}
