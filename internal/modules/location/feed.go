// README: In-process fan-out of device events to the watches subscribed for a user.
package location

import (
	"sync"

	"go.uber.org/zap"

	"pickleheart/internal/types"
)

const defaultFeedBuffer = 16

type subscription struct {
	ch   chan Event
	once sync.Once
}

// Feed routes events published for a user to every live subscription of that user.
// Publish never blocks: when a subscriber's buffer is full the event is dropped.
type Feed struct {
	mu     sync.RWMutex
	subs   map[types.ID]map[*subscription]struct{}
	buffer int
	log    *zap.Logger
}

func NewFeed(buffer int, log *zap.Logger) *Feed {
	if buffer <= 0 {
		buffer = defaultFeedBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Feed{subs: make(map[types.ID]map[*subscription]struct{}), buffer: buffer, log: log}
}

// Subscribe returns the event channel and a cancel func. Cancel is idempotent
// and closes the channel.
func (f *Feed) Subscribe(userID types.ID) (<-chan Event, func()) {
	sub := &subscription{ch: make(chan Event, f.buffer)}

	f.mu.Lock()
	set, ok := f.subs[userID]
	if !ok {
		set = make(map[*subscription]struct{})
		f.subs[userID] = set
	}
	set[sub] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if set, ok := f.subs[userID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(f.subs, userID)
				}
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers ev to the user's subscriptions and reports how many took it.
func (f *Feed) Publish(userID types.ID, ev Event) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	delivered := 0
	for sub := range f.subs[userID] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			f.log.Warn("location feed full, dropping event", zap.String("user_id", string(userID)))
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions for the user.
func (f *Feed) Subscribers(userID types.ID) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[userID])
}
