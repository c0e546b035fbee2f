package xumm

// Observer receives payload subscription lifecycle notifications.
// Implementations must be safe for concurrent use: every subscription
// reports from its own goroutine.
type Observer interface {
	SubscriptionOpened(uuid string)
	MessageReceived(uuid string)
	KeepaliveTimedOut(uuid string)
	Reconnecting(uuid string, attempt uint64)
	SubscriptionSettled(uuid string, err error)
}

// NopObserver ignores every notification
type NopObserver struct{}

func (NopObserver) SubscriptionOpened(string)         {}
func (NopObserver) MessageReceived(string)            {}
func (NopObserver) KeepaliveTimedOut(string)          {}
func (NopObserver) Reconnecting(string, uint64)       {}
func (NopObserver) SubscriptionSettled(string, error) {}
