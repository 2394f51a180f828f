package auth

import "sync"

// State is the auth state exposed to the UI.
type State struct {
	User    *Session
	Profile *Profile
	// Loading is true until session bootstrap settles.
	Loading bool
}

// Authenticated reports whether a user is signed in.
func (s State) Authenticated() bool {
	return s.User != nil
}

// Approved reports whether the signed-in user's profile is approved.
func (s State) Approved() bool {
	return s.User != nil && s.Profile != nil && s.Profile.IsApproved
}

// Store coordinates concurrent updates to the auth state. Writes after
// Dispose are dropped.
type Store struct {
	mu       sync.RWMutex
	state    State
	epoch    uint64
	disposed bool
	changes  chan struct{}
}

// NewStore returns a store in its initial state: no user, no profile,
// loading.
func NewStore() *Store {
	return &Store{
		state:   State{Loading: true},
		changes: make(chan struct{}, 1),
	}
}

// SetSession replaces the user.
func (s *Store) SetSession(sess *Session) {
	s.update(func(st *State) { st.User = sess.clone() })
}

// SetProfile replaces the profile.
func (s *Store) SetProfile(p *Profile) {
	s.update(func(st *State) { st.Profile = p.clone() })
}

// SetLoading sets the bootstrap flag.
func (s *Store) SetLoading(loading bool) {
	s.update(func(st *State) { st.Loading = loading })
}

// Clear drops the user and profile together and invalidates every Writer
// taken before the call.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.epoch++
	s.state.User = nil
	s.state.Profile = nil
	s.notify()
}

// Writer returns a handle whose writes only land if Clear has not run
// since it was taken.
func (s *Store) Writer() Writer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Writer{store: s, epoch: s.epoch}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.state
	snap.User = s.state.User.clone()
	snap.Profile = s.state.Profile.clone()
	return snap
}

// Changes delivers a signal after each applied write. Signals coalesce:
// a reader that falls behind sees one pending signal, not a backlog.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Dispose stops the store from accepting writes.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
}

// Disposed reports whether Dispose has been called.
func (s *Store) Disposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}

func (s *Store) update(fn func(*State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return false
	}
	fn(&s.state)
	s.notify()
	return true
}

func (s *Store) updateAt(epoch uint64, fn func(*State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.epoch != epoch {
		return false
	}
	fn(&s.state)
	s.notify()
	return true
}

// notify must be called with mu held.
func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Writer is a view of a Store bound to the epoch it was taken at.
type Writer struct {
	store *Store
	epoch uint64
}

// SetSession replaces the user unless the store was cleared or disposed.
func (w Writer) SetSession(sess *Session) bool {
	return w.store.updateAt(w.epoch, func(st *State) { st.User = sess.clone() })
}

// SetProfile replaces the profile unless the store was cleared or disposed.
func (w Writer) SetProfile(p *Profile) bool {
	return w.store.updateAt(w.epoch, func(st *State) { st.Profile = p.clone() })
}

// SetIdentity replaces user and profile in one write.
func (w Writer) SetIdentity(sess *Session, p *Profile) bool {
	return w.store.updateAt(w.epoch, func(st *State) {
		st.User = sess.clone()
		st.Profile = p.clone()
	})
}
