package session

import (
	"sync"

	"github.com/datealchemy/alchemy/internal/auth"
)

// subscriber delivers events to one callback, in order, on its own
// goroutine. push never blocks.
type subscriber struct {
	fn func(auth.Event)

	mu    sync.Mutex
	queue []auth.Event

	wake chan struct{}
	quit chan struct{}
	once sync.Once
}

func newSubscriber(fn func(auth.Event)) *subscriber {
	s := &subscriber{
		fn:   fn,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *subscriber) push(ev auth.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// stop ends delivery. A callback already running is not waited for.
func (s *subscriber) stop() {
	s.once.Do(func() { close(s.quit) })
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
		}
		for {
			ev, ok := s.next()
			if !ok {
				break
			}
			select {
			case <-s.quit:
				return
			default:
			}
			s.fn(ev)
		}
	}
}

func (s *subscriber) next() (auth.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return auth.Event{}, false
	}
	ev := s.queue[0]
	s.queue[0] = auth.Event{}
	s.queue = s.queue[1:]
	return ev, true
}
