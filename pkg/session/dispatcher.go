package session

import (
	"sync"
	"sync/atomic"
)

// dispatcher runs handler notifications on one goroutine in push order.
// push never blocks, so the session may notify while holding its lock
// and handlers may call back into the session.
type dispatcher struct {
	mu    sync.Mutex
	items []func()

	signal  chan struct{}
	quit    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
	stopped atomic.Bool
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		signal: make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
}

func (d *dispatcher) start() {
	if d.running.Swap(true) {
		return
	}
	d.wg.Add(1)
	go d.loop()
}

// push queues fn. Notifications pushed after stop are dropped.
func (d *dispatcher) push(fn func()) {
	if d.stopped.Load() {
		return
	}
	d.mu.Lock()
	d.items = append(d.items, fn)
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// pending returns the number of queued notifications.
func (d *dispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// stop discards pending notifications. A notification already running
// completes; stop does not wait for it.
func (d *dispatcher) stop() {
	if d.stopped.Swap(true) {
		return
	}
	close(d.quit)

	d.mu.Lock()
	d.items = nil
	d.mu.Unlock()
}

func (d *dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.quit:
			return
		case <-d.signal:
		}

		for {
			d.mu.Lock()
			if len(d.items) == 0 {
				d.mu.Unlock()
				break
			}
			fn := d.items[0]
			d.items[0] = nil
			d.items = d.items[1:]
			d.mu.Unlock()

			if d.stopped.Load() {
				return
			}
			fn()
		}
	}
}
