package coordinator

import (
	"runtime/debug"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// notifier delivers state snapshots to subscribers in publish order on a
// single dispatcher goroutine. Publishing never blocks and never drops, so
// it is safe to call with the coordinator lock held.
type notifier struct {
	logger zerolog.Logger

	mu     sync.Mutex
	subs   map[uint64]func(State)
	nextID uint64
	queue  []State
	closed bool

	wake chan struct{}
	quit chan struct{}
}

func newNotifier(logger zerolog.Logger) *notifier {
	n := &notifier{
		logger: logger,
		subs:   make(map[uint64]func(State)),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
	go n.dispatch()
	return n
}

// subscribe registers fn and returns a func that removes it.
func (n *notifier) subscribe(fn func(State)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
		})
	}
}

func (n *notifier) publish(s State) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, s)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
		// dispatcher already signalled
	}
}

// close stops delivery. Queued snapshots are discarded. It does not wait
// for the dispatcher, so subscribers may call it.
func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	n.queue = nil
	close(n.quit)
}

func (n *notifier) dispatch() {
	for {
		select {
		case <-n.wake:
		case <-n.quit:
			return
		}

		for {
			s, handlers, ok := n.next()
			if !ok {
				break
			}
			for _, h := range handlers {
				n.deliver(h, s)
			}
		}
	}
}

// next pops the oldest snapshot along with the subscribers to deliver it to.
func (n *notifier) next() (State, []func(State), bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed || len(n.queue) == 0 {
		return State{}, nil, false
	}

	s := n.queue[0]
	n.queue[0] = State{}
	n.queue = n.queue[1:]

	ids := make([]uint64, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	handlers := make([]func(State), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, n.subs[id])
	}
	return s, handlers, true
}

func (n *notifier) deliver(h func(State), s State) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Subscriber panicked")
		}
	}()
	h(s)
}
