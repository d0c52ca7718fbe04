package auth

import "sync"

// Notifier fans identity changes out to listeners. Providers embed one and
// call Resolve once their persisted session is known, and Set on every change
// after that.
//
// Listeners are called synchronously, one at a time, in registration order.
// A listener must not call back into the notifier.
type Notifier struct {
	mu        sync.Mutex
	resolved  bool
	current   *Identity
	listeners map[int]func(*Identity)
	order     []int
	next      int

	emitMu sync.Mutex
}

// Subscribe registers fn. If the identity is already resolved, fn receives it
// before Subscribe returns.
func (n *Notifier) Subscribe(fn func(*Identity)) (unsubscribe func()) {
	n.emitMu.Lock()
	defer n.emitMu.Unlock()

	n.mu.Lock()
	if n.listeners == nil {
		n.listeners = make(map[int]func(*Identity))
	}
	key := n.next
	n.next++
	n.listeners[key] = fn
	n.order = append(n.order, key)
	resolved, current := n.resolved, n.current
	n.mu.Unlock()

	if resolved {
		fn(copyIdentity(current))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, key)
			for i, k := range n.order {
				if k == key {
					n.order = append(n.order[:i], n.order[i+1:]...)
					break
				}
			}
			n.mu.Unlock()
		})
	}
}

// Resolve records the restored identity unless the notifier is already
// resolved. It returns false when a sign-in or sign-out got there first.
func (n *Notifier) Resolve(id *Identity) bool {
	n.emitMu.Lock()
	defer n.emitMu.Unlock()

	n.mu.Lock()
	if n.resolved {
		n.mu.Unlock()
		return false
	}
	n.mu.Unlock()
	n.emit(id)
	return true
}

// Set records id as the current identity and notifies every listener.
func (n *Notifier) Set(id *Identity) {
	n.emitMu.Lock()
	defer n.emitMu.Unlock()
	n.emit(id)
}

// Current returns the current identity and whether it has been resolved.
func (n *Notifier) Current() (*Identity, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return copyIdentity(n.current), n.resolved
}

// emit must be called with emitMu held.
func (n *Notifier) emit(id *Identity) {
	n.mu.Lock()
	n.resolved = true
	n.current = copyIdentity(id)
	fns := make([]func(*Identity), 0, len(n.order))
	for _, k := range n.order {
		fns = append(fns, n.listeners[k])
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(copyIdentity(id))
	}
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
