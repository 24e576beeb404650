package ledger

import "time"

// WindowLength is how long after the latest inbound message free-form
// replies are allowed.
const WindowLength = 24 * time.Hour

// Window reports the response-window state of a contact. The ledger only
// reports it; appends are never refused because the window is closed.
type Window struct {
	IsOpen        bool
	Remaining     time.Duration
	LastInboundAt *time.Time
	ExpiresAt     *time.Time
}

func (w Window) RemainingSeconds() int64 {
	return int64(w.Remaining / time.Second)
}

// ComputeWindow derives the window from the latest inbound timestamp. A nil
// timestamp means the contact never wrote in and the window is closed.
// Inbound timestamps in the future keep the window open with at most
// WindowLength remaining.
func ComputeWindow(lastInbound *time.Time, now time.Time) Window {
	if lastInbound == nil {
		return Window{}
	}

	last := lastInbound.UTC()
	expires := last.Add(WindowLength)
	w := Window{LastInboundAt: &last, ExpiresAt: &expires}

	remaining := expires.Sub(now)
	if remaining <= 0 {
		return w
	}
	if remaining > WindowLength {
		remaining = WindowLength
	}
	w.IsOpen = true
	w.Remaining = remaining
	return w
}
