package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu sync.Mutex

	session    *Session
	sessionErr error
	// sessionGate, when set, blocks GetSession until closed.
	sessionGate chan struct{}

	profiles   map[string]*Profile
	profileErr error
	// profileGate, when set, blocks FetchProfile until closed.
	profileGate    chan struct{}
	profileStarted chan struct{}

	signInErr  error
	signUpErr  error
	signUpNil  bool
	signOutErr error

	subs         map[int]func(Event)
	nextSub      int
	unsubscribed int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		profiles: map[string]*Profile{},
		subs:     map[int]func(Event){},
	}
}

func (f *fakeBackend) GetSession(ctx context.Context) (*Session, error) {
	f.mu.Lock()
	gate := f.sessionGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session.clone(), f.sessionErr
}

func (f *fakeBackend) SignUp(_ context.Context, email, _ string) (*Session, error) {
	f.mu.Lock()
	err, pending := f.signUpErr, f.signUpNil
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, nil
	}
	sess := &Session{AccessToken: "tok", UserID: "new-user", Email: email}
	go f.emit(Event{Kind: EventSignedIn, Session: sess})
	return sess, nil
}

func (f *fakeBackend) SignIn(_ context.Context, email, _ string) (*Session, error) {
	f.mu.Lock()
	err := f.signInErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sess := &Session{AccessToken: "tok", UserID: "u1", Email: email}
	go f.emit(Event{Kind: EventSignedIn, Session: sess})
	return sess, nil
}

func (f *fakeBackend) SignOut(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutErr
}

func (f *fakeBackend) FetchProfile(ctx context.Context, sess *Session) (*Profile, error) {
	f.mu.Lock()
	gate, started := f.profileGate, f.profileStarted
	f.mu.Unlock()
	if started != nil {
		close(started)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profiles[sess.UserID].clone(), nil
}

func (f *fakeBackend) Subscribe(onChange func(Event)) Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = onChange
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			f.unsubscribed++
		})
	}
}

func (f *fakeBackend) emit(ev Event) {
	f.mu.Lock()
	subs := make([]func(Event), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (f *fakeBackend) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func TestBootstrap_UnconfiguredSettlesImmediately(t *testing.T) {
	p := NewProvider(nil, nil)
	p.Mount(context.Background())
	defer p.Unmount()

	start := time.Now()
	p.Bootstrap(context.Background())

	snap := p.State()
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, p.Configured())
}

func TestActions_UnconfiguredReturnConfigurationError(t *testing.T) {
	p := NewProvider(nil, nil)
	ctx := context.Background()

	assert.ErrorIs(t, p.SignIn(ctx, "a@example.com", "secret1"), ErrNotConfigured)
	assert.ErrorIs(t, p.SignUp(ctx, "a@example.com", "secret1"), ErrNotConfigured)
	assert.NoError(t, p.SignOut(ctx), "sign-out without a backend just clears local state")
	assert.Equal(t, KindConfiguration, KindOf(p.SignIn(ctx, "a@example.com", "secret1")))
}

func TestBootstrap_RestoresSessionAndProfile(t *testing.T) {
	fb := newFakeBackend()
	fb.session = &Session{AccessToken: "tok", UserID: "u1", Email: "a@example.com"}
	fb.profiles["u1"] = &Profile{ID: "u1", Email: "a@example.com", IsApproved: true}

	p := NewProvider(fb, nil)
	p.Mount(context.Background())
	defer p.Unmount()
	p.Bootstrap(context.Background())

	snap := p.State()
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.User)
	assert.Equal(t, "u1", snap.User.UserID)
	require.NotNil(t, snap.Profile)
	assert.True(t, snap.Approved())
}

func TestBootstrap_ProfileFailureKeepsUser(t *testing.T) {
	fb := newFakeBackend()
	fb.session = &Session{UserID: "u1"}
	fb.profileErr = &NetworkError{Op: "fetch profile", Err: errors.New("connection refused")}

	p := NewProvider(fb, nil)
	p.Bootstrap(context.Background())

	snap := p.State()
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.User)
	assert.Nil(t, snap.Profile)
	assert.False(t, snap.Approved())
}

func TestBootstrap_SessionErrorIsSwallowed(t *testing.T) {
	fb := newFakeBackend()
	fb.sessionErr = &BackendError{Status: 400, Message: "Invalid Refresh Token"}

	p := NewProvider(fb, nil)
	p.Bootstrap(context.Background())

	snap := p.State()
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.User)
}

func TestBootstrap_TimeoutThenLateSessionApplied(t *testing.T) {
	fb := newFakeBackend()
	fb.sessionGate = make(chan struct{})
	fb.session = &Session{UserID: "late"}
	fb.profiles["late"] = &Profile{ID: "late", IsApproved: true}

	p := NewProvider(fb, nil, WithBootstrapTimeout(20*time.Millisecond))
	p.Mount(context.Background())
	defer p.Unmount()

	start := time.Now()
	p.Bootstrap(context.Background())
	assert.Less(t, time.Since(start), time.Second)

	snap := p.State()
	assert.False(t, snap.Loading, "loading must clear at the timeout")
	assert.Nil(t, snap.User)

	close(fb.sessionGate)
	require.Eventually(t, func() bool {
		return p.State().Approved()
	}, time.Second, 5*time.Millisecond)
	assert.False(t, p.State().Loading, "late result must not flip loading back")
}

func TestBootstrap_LateSessionDroppedAfterUnmount(t *testing.T) {
	fb := newFakeBackend()
	fb.sessionGate = make(chan struct{})
	fb.session = &Session{UserID: "late"}

	p := NewProvider(fb, nil, WithBootstrapTimeout(10*time.Millisecond))
	p.Mount(context.Background())
	p.Bootstrap(context.Background())
	p.Unmount()

	close(fb.sessionGate)
	time.Sleep(30 * time.Millisecond)
	assert.Nil(t, p.State().User)
}

func TestBootstrap_SecondRunOverwrites(t *testing.T) {
	fb := newFakeBackend()
	fb.session = &Session{UserID: "u1"}

	p := NewProvider(fb, nil)
	p.Bootstrap(context.Background())
	require.NotNil(t, p.State().User)

	fb.mu.Lock()
	fb.session = nil
	fb.mu.Unlock()

	p.Bootstrap(context.Background())
	snap := p.State()
	assert.Nil(t, snap.User)
	assert.False(t, snap.Loading)
}

func TestMount_SubscribesOnceAndUnmountReleases(t *testing.T) {
	fb := newFakeBackend()
	p := NewProvider(fb, nil)

	p.Mount(context.Background())
	p.Mount(context.Background())
	assert.Equal(t, 1, fb.subscriberCount())

	p.Unmount()
	p.Unmount()
	assert.Equal(t, 0, fb.subscriberCount())
	assert.Equal(t, 1, fb.unsubscribed)
}

func TestListener_SessionEventSetsUserAndProfile(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles["u1"] = &Profile{ID: "u1", IsApproved: false}

	p := NewProvider(fb, nil)
	p.Mount(context.Background())
	defer p.Unmount()

	fb.emit(Event{Kind: EventTokenRefreshed, Session: &Session{UserID: "u1"}})

	snap := p.State()
	require.NotNil(t, snap.User)
	require.NotNil(t, snap.Profile)
	assert.False(t, snap.Approved())
}

func TestListener_ProfileFailureLeavesProfileNil(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles["u1"] = &Profile{ID: "u1", IsApproved: true}

	p := NewProvider(fb, nil)
	p.Mount(context.Background())
	defer p.Unmount()

	fb.emit(Event{Kind: EventSignedIn, Session: &Session{UserID: "u1"}})
	require.True(t, p.State().Approved())

	fb.mu.Lock()
	fb.profileErr = errors.New("boom")
	fb.mu.Unlock()
	fb.emit(Event{Kind: EventTokenRefreshed, Session: &Session{UserID: "u1"}})

	snap := p.State()
	require.NotNil(t, snap.User)
	assert.Nil(t, snap.Profile)
}

func TestListener_SignedOutClearsTogether(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles["u1"] = &Profile{ID: "u1", IsApproved: true}

	p := NewProvider(fb, nil)
	p.Mount(context.Background())
	defer p.Unmount()

	fb.emit(Event{Kind: EventSignedIn, Session: &Session{UserID: "u1"}})
	require.True(t, p.State().Approved())

	fb.emit(Event{Kind: EventSignedOut})
	snap := p.State()
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile)
}

func TestSignIn_StateArrivesThroughListener(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles["u1"] = &Profile{ID: "u1", IsApproved: true}

	p := NewProvider(fb, nil)
	p.Mount(context.Background())
	defer p.Unmount()
	p.Bootstrap(context.Background())

	require.NoError(t, p.SignIn(context.Background(), "a@example.com", "secret1"))
	require.Eventually(t, func() bool {
		snap := p.State()
		return snap.User != nil && snap.Profile != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "a@example.com", p.State().User.Email)
}

func TestSignIn_RejectedCredentials(t *testing.T) {
	fb := newFakeBackend()
	fb.signInErr = &BackendError{Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}

	p := NewProvider(fb, nil)
	p.Mount(context.Background())
	defer p.Unmount()
	p.Bootstrap(context.Background())

	err := p.SignIn(context.Background(), "a@example.com", "wrong-password")
	require.Error(t, err)

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, "Invalid login credentials", err.Error())
	assert.Equal(t, KindBackend, KindOf(err))
	assert.Nil(t, p.State().User)
}

func TestSignIn_UnknownErrorIsWrapped(t *testing.T) {
	fb := newFakeBackend()
	cause := errors.New("decode response")
	fb.signInErr = cause

	p := NewProvider(fb, nil)
	err := p.SignIn(context.Background(), "a@example.com", "secret1")
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "sign in")
	assert.Equal(t, KindUnknown, KindOf(err))
}

func TestSignUp_ConfirmationPending(t *testing.T) {
	fb := newFakeBackend()
	fb.signUpNil = true

	p := NewProvider(fb, nil)
	err := p.SignUp(context.Background(), "new@example.com", "secret1")
	assert.ErrorIs(t, err, ErrConfirmationPending)
	assert.Equal(t, KindConfirmationPending, KindOf(err))
	assert.Nil(t, p.State().User)
}

func TestSignUp_SuccessSignsInThroughListener(t *testing.T) {
	fb := newFakeBackend()

	p := NewProvider(fb, nil)
	p.Mount(context.Background())
	defer p.Unmount()

	require.NoError(t, p.SignUp(context.Background(), "new@example.com", "secret1"))
	require.Eventually(t, func() bool {
		return p.State().User != nil
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, p.State().Profile, "no profile row yet for a fresh account")
}

func TestSignOut_ClearsEvenWhenBackendFails(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles["u1"] = &Profile{ID: "u1", IsApproved: true}
	fb.signOutErr = &NetworkError{Op: "sign out", Err: errors.New("timeout")}

	p := NewProvider(fb, nil)
	p.Mount(context.Background())
	defer p.Unmount()
	fb.emit(Event{Kind: EventSignedIn, Session: &Session{UserID: "u1"}})
	require.NotNil(t, p.State().User)

	err := p.SignOut(context.Background())
	assert.Equal(t, KindNetwork, KindOf(err))

	snap := p.State()
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile)
}

func TestSignOut_WinsOverInFlightListener(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles["u1"] = &Profile{ID: "u1", IsApproved: true}
	fb.profileGate = make(chan struct{})
	fb.profileStarted = make(chan struct{})

	p := NewProvider(fb, nil)
	p.Mount(context.Background())
	defer p.Unmount()

	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		fb.emit(Event{Kind: EventSignedIn, Session: &Session{UserID: "u1"}})
	}()

	select {
	case <-fb.profileStarted:
	case <-time.After(time.Second):
		t.Fatal("listener never started its profile fetch")
	}

	require.NoError(t, p.SignOut(context.Background()))
	close(fb.profileGate)
	<-listenerDone

	snap := p.State()
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"not configured", ErrNotConfigured, KindConfiguration},
		{"backend", &BackendError{Message: "User already registered"}, KindBackend},
		{"wrapped backend", errors.Join(errors.New("ctx"), &BackendError{Message: "x"}), KindBackend},
		{"network", &NetworkError{Op: "sign in", Err: errors.New("refused")}, KindNetwork},
		{"timeout", ErrBootstrapTimeout, KindTimeout},
		{"pending", ErrConfirmationPending, KindConfirmationPending},
		{"other", errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "User already registered", Message(&BackendError{Status: 422, Message: "User already registered"}))
	assert.Contains(t, Message(&NetworkError{Op: "sign in", Err: errors.New("refused")}), "Could not reach the server")
	assert.Equal(t, ErrNotConfigured.Error(), Message(ErrNotConfigured))
}
