package channel

import "sync"

// Registration delivers readiness-change notifications for one channel.
// A notification means readiness may have changed; callers re-check with
// Ready. Cancel must be called once the registration is no longer needed.
type Registration struct {
	c        chan struct{}
	interest Interest
	n        *notifier
	once     sync.Once
}

// C returns the notification channel. It has a buffer of one, so bursts of
// changes collapse into a single wakeup.
func (r *Registration) C() <-chan struct{} {
	return r.c
}

// Interest returns the conditions this registration was created for.
func (r *Registration) Interest() Interest {
	return r.interest
}

// Cancel removes the registration from its channel. It is safe to call
// more than once.
func (r *Registration) Cancel() {
	r.once.Do(func() {
		r.n.remove(r)
	})
}

func (r *Registration) signal() {
	select {
	case r.c <- struct{}{}:
	default:
	}
}

// notifier fans readiness changes out to registrations.
type notifier struct {
	mu   sync.Mutex
	regs map[*Registration]struct{}
}

func newNotifier() *notifier {
	return &notifier{regs: make(map[*Registration]struct{})}
}

func (n *notifier) register(interest Interest) *Registration {
	r := &Registration{
		c:        make(chan struct{}, 1),
		interest: interest,
		n:        n,
	}
	n.mu.Lock()
	n.regs[r] = struct{}{}
	n.mu.Unlock()
	return r
}

func (n *notifier) remove(r *Registration) {
	n.mu.Lock()
	delete(n.regs, r)
	n.mu.Unlock()
}

func (n *notifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.regs)
}

func (n *notifier) broadcast() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for r := range n.regs {
		r.signal()
	}
}
