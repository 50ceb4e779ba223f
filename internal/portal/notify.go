// Package portal holds the client-side flows of the PYQ portal: notifications,
// the Q&A conversation, the upload form and the browse list.
package portal

import (
	"slices"
	"sync"
	"time"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
)

const DefaultNotificationDuration = 5 * time.Second

type Notification struct {
	ID        int64
	Kind      Kind
	Message   string
	CreatedAt time.Time
}

// Notifier owns the list of visible notifications. Each one expires after its
// duration unless dismissed first. Close stops every pending expiry.
type Notifier struct {
	mu        sync.Mutex
	duration  time.Duration
	nextID    int64
	items     []Notification
	timers    map[int64]*time.Timer
	listeners []func(Notification)
	closed    bool
}

func NewNotifier(duration time.Duration) *Notifier {
	if duration < 0 {
		duration = 0
	}
	return &Notifier{
		duration: duration,
		timers:   make(map[int64]*time.Timer),
	}
}

// Listen registers fn to be called for every new notification.
func (n *Notifier) Listen(fn func(Notification)) {
	n.mu.Lock()
	n.listeners = append(n.listeners, fn)
	n.mu.Unlock()
}

// Add shows a notification for the default duration.
func (n *Notifier) Add(kind Kind, message string) int64 {
	return n.AddFor(kind, message, n.duration)
}

// AddFor shows a notification for d. A zero d keeps it until dismissed.
func (n *Notifier) AddFor(kind Kind, message string, d time.Duration) int64 {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return 0
	}
	n.nextID++
	note := Notification{ID: n.nextID, Kind: kind, Message: message, CreatedAt: time.Now()}
	n.items = append(n.items, note)
	if d > 0 {
		id := note.ID
		n.timers[id] = time.AfterFunc(d, func() { n.Dismiss(id) })
	}
	listeners := slices.Clone(n.listeners)
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(note)
	}
	return note.ID
}

// Dismiss removes a notification. It reports whether it was still visible.
func (n *Notifier) Dismiss(id int64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if t, ok := n.timers[id]; ok {
		t.Stop()
		delete(n.timers, id)
	}
	i := slices.IndexFunc(n.items, func(note Notification) bool { return note.ID == id })
	if i < 0 {
		return false
	}
	n.items = slices.Delete(n.items, i, i+1)
	return true
}

// Active returns the visible notifications, oldest first.
func (n *Notifier) Active() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.items)
}

func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, t := range n.timers {
		t.Stop()
		delete(n.timers, id)
	}
	n.items = nil
	n.closed = true
}
