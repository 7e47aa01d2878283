// Package changefeed delivers "something changed" signals for tables to
// interested subscribers. Events never carry row data; a subscriber is
// expected to re-fetch whatever it displays.
package changefeed

import (
	"sync"
	"time"
)

// Table names used on the feed.
const (
	TableBookings      = "bookings"
	TableOrders        = "laundry_orders"
	TableMachines      = "machines"
	TableProfiles      = "profiles"
	TableWallets       = "user_wallets"
	TableTransactions  = "wallet_transactions"
	TableNotifications = "notifications"
)

// Op is the kind of write that produced an event.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Event signals that rows in Table changed. UserID is the owner of the
// affected rows, empty for tables without an owner.
type Event struct {
	Table  string    `json:"table"`
	Op     Op        `json:"op"`
	UserID string    `json:"user_id,omitempty"`
	At     time.Time `json:"at"`
}

// Filter selects events. An empty Table matches every table and an empty
// UserID matches every owner.
type Filter struct {
	Table  string
	UserID string
}

func (f Filter) matches(e Event) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.UserID != "" && f.UserID != e.UserID {
		return false
	}
	return true
}

// Broker fans events out to subscribers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool
}

// NewBroker creates a broker whose subscriptions buffer up to buffer events.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 1
	}
	return &Broker{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
	}
}

// Subscription receives matching events on C until Close is called.
type Subscription struct {
	C <-chan Event

	id     uint64
	ch     chan Event
	filter Filter
	broker *Broker
	once   sync.Once
}

// Subscribe registers a new subscription for events matching f.
func (b *Broker) Subscribe(f Filter) *Subscription {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		C:      ch,
		id:     b.nextID,
		ch:     ch,
		filter: f,
		broker: b,
	}
	if b.closed {
		sub.once.Do(func() { close(ch) })
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Close ends every subscription. Subscriptions made afterwards start closed.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

// Close releases the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s.id)
		s.broker.mu.Unlock()
		close(s.ch)
	})
}

// Publish delivers e to every matching subscriber. A subscriber whose buffer
// is full misses the event; a pending signal already tells it to re-fetch.
func (b *Broker) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.filter.matches(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
}

// Len returns the number of open subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
