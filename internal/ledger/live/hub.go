// Package live fans newly recorded attendance entries out to roster
// subscribers, either in-process or across instances through NATS.
package live

import (
	"context"
	"sync"

	"rollcall/internal/ledger/models"
	"rollcall/pkg/domain"
)

// subscriberBuffer is how many entries a slow subscriber may lag behind
// before further entries are dropped for it.
const subscriberBuffer = 64

type subscriber struct {
	ch chan *models.Entry
}

// Hub is the single-instance broker. Publish never blocks on a subscriber.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[domain.ListID]map[uint64]*subscriber
}

func NewHub() *Hub {
	return &Hub{subs: make(map[domain.ListID]map[uint64]*subscriber)}
}

func (h *Hub) Publish(_ context.Context, entry *models.Entry) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs[entry.ListID] {
		deliver(sub.ch, entry)
	}
	return nil
}

// Subscribe registers for entries of one list. The returned cancel removes
// the subscription; the channel is left open and simply stops receiving.
func (h *Hub) Subscribe(listID domain.ListID) (<-chan *models.Entry, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	sub := &subscriber{ch: make(chan *models.Entry, subscriberBuffer)}
	if h.subs[listID] == nil {
		h.subs[listID] = make(map[uint64]*subscriber)
	}
	h.subs[listID][id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[listID], id)
			if len(h.subs[listID]) == 0 {
				delete(h.subs, listID)
			}
		})
	}
	return sub.ch, cancel, nil
}

// Subscribers reports the number of live subscriptions for a list.
func (h *Hub) Subscribers(listID domain.ListID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[listID])
}

func deliver(ch chan *models.Entry, entry *models.Entry) bool {
	select {
	case ch <- entry:
		return true
	default:
		return false
	}
}
