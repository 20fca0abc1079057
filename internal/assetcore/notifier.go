package assetcore

import "log"

// ChangeNotifier is the single capability the asset core requires from the
// git synchronisation manager (out of scope here, see spec §1). It is
// called after successful mutating operations; a failing implementation
// must never be allowed to propagate back into the caller.
type ChangeNotifier interface {
	Notify(reason string)
}

// NoopNotifier discards every notification. Used by tests and by callers
// that run without a sync collaborator wired up.
type NoopNotifier struct{}

func (NoopNotifier) Notify(string) {}

// LoggingNotifier logs each reason with the bracketed component tag the
// rest of this package uses. It never returns an error, so it can be
// embedded directly as a ChangeNotifier without a recover wrapper.
type LoggingNotifier struct{}

func (LoggingNotifier) Notify(reason string) {
	log.Printf("[AssetService] sync notify: %s", reason)
}

// safeNotify calls n.Notify and recovers from any panic inside it, so a
// misbehaving collaborator can never take down the caller.
func safeNotify(n ChangeNotifier, reason string) {
	if n == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[AssetService] change notifier panicked: %v", r)
		}
	}()
	n.Notify(reason)
}
