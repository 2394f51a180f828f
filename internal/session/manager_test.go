package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datealchemy/alchemy/internal/auth"
	"github.com/datealchemy/alchemy/internal/supabase"
)

type fakeAPI struct {
	mu sync.Mutex

	signIn      func(email, password string) (*supabase.Session, error)
	signUp      func(email, password string) (*supabase.Session, *supabase.User, error)
	refresh     func(token string) (*supabase.Session, error)
	refreshGate chan struct{}
	user        *supabase.User
	signOutErr  error
	profile     *supabase.Profile

	refreshCalls atomic.Int32
	signOutCalls atomic.Int32
	lastProfile  [2]string
}

func (f *fakeAPI) SignUp(_ context.Context, email, password string) (*supabase.Session, *supabase.User, error) {
	return f.signUp(email, password)
}

func (f *fakeAPI) SignInWithPassword(_ context.Context, email, password string) (*supabase.Session, error) {
	return f.signIn(email, password)
}

func (f *fakeAPI) RefreshSession(_ context.Context, token string) (*supabase.Session, error) {
	f.refreshCalls.Add(1)
	if f.refreshGate != nil {
		<-f.refreshGate
	}
	return f.refresh(token)
}

func (f *fakeAPI) GetUser(context.Context, string) (*supabase.User, error) {
	return f.user, nil
}

func (f *fakeAPI) SignOut(context.Context, string) error {
	f.signOutCalls.Add(1)
	return f.signOutErr
}

func (f *fakeAPI) FetchProfile(_ context.Context, accessToken, userID string) (*supabase.Profile, error) {
	f.mu.Lock()
	f.lastProfile = [2]string{accessToken, userID}
	f.mu.Unlock()
	return f.profile, nil
}

func wireSession(access, refresh string, expiresAt time.Time) *supabase.Session {
	return &supabase.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt.Unix(),
		User:         supabase.User{ID: "u1", Email: "a@example.com"},
	}
}

// wireSessionIn is a session the way GoTrue issues it: a lifetime in
// expires_in and the server's own absolute expires_at.
func wireSessionIn(access, refresh string, ttl time.Duration, serverNow time.Time) *supabase.Session {
	sess := wireSession(access, refresh, serverNow.Add(ttl))
	sess.ExpiresIn = int64(ttl / time.Second)
	return sess
}

type eventLog struct {
	mu     sync.Mutex
	events []auth.Event
}

func (l *eventLog) record(ev auth.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []auth.EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]auth.EventKind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

func TestManager_GetSessionEmpty(t *testing.T) {
	m := NewManager(&fakeAPI{}, &MemoryStore{})
	defer m.Close()

	sess, err := m.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestManager_GetSessionFromStore(t *testing.T) {
	store := &MemoryStore{}
	stored := sampleSession()
	stored.ExpiresAt = time.Now().Add(time.Hour)
	require.NoError(t, store.Save(stored))

	api := &fakeAPI{}
	m := NewManager(api, store)
	defer m.Close()

	sess, err := m.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, stored.UserID, sess.UserID)
	assert.EqualValues(t, 0, api.refreshCalls.Load())
}

func TestManager_GetSessionRefreshesExpired(t *testing.T) {
	store := &MemoryStore{}
	stored := sampleSession()
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Save(stored))

	api := &fakeAPI{
		refresh: func(token string) (*supabase.Session, error) {
			if token != "refresh" {
				return nil, &supabase.APIError{Status: 400, Message: "Invalid Refresh Token"}
			}
			return wireSession("access-2", "refresh-2", time.Now().Add(time.Hour)), nil
		},
	}
	m := NewManager(api, store)
	defer m.Close()

	var log eventLog
	unsubscribe := m.Subscribe(log.record)
	defer unsubscribe()

	sess, err := m.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "access-2", sess.AccessToken)

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", persisted.RefreshToken)

	require.Eventually(t, func() bool {
		kinds := log.kinds()
		return len(kinds) == 1 && kinds[0] == auth.EventTokenRefreshed
	}, time.Second, 5*time.Millisecond)
}

func TestManager_RejectedRefreshDropsSession(t *testing.T) {
	store := &MemoryStore{}
	stored := sampleSession()
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Save(stored))

	api := &fakeAPI{
		refresh: func(string) (*supabase.Session, error) {
			return nil, &supabase.APIError{Status: 400, Code: "refresh_token_not_found", Message: "Invalid Refresh Token: Refresh Token Not Found"}
		},
	}
	m := NewManager(api, store)
	defer m.Close()

	sess, err := m.GetSession(context.Background())
	assert.Nil(t, sess)
	var backendErr *auth.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, "Invalid Refresh Token: Refresh Token Not Found", backendErr.Message)

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, persisted)
}

func TestManager_ConcurrentRefreshCollapses(t *testing.T) {
	store := &MemoryStore{}
	stored := sampleSession()
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Save(stored))

	gate := make(chan struct{})
	api := &fakeAPI{
		refreshGate: gate,
		refresh: func(string) (*supabase.Session, error) {
			return wireSession("access-2", "refresh-2", time.Now().Add(time.Hour)), nil
		},
	}
	m := NewManager(api, store)
	defer m.Close()

	var wg sync.WaitGroup
	results := make([]*auth.Session, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := m.GetSession(context.Background())
			assert.NoError(t, err)
			results[i] = sess
		}(i)
	}

	require.Eventually(t, func() bool { return api.refreshCalls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.EqualValues(t, 1, api.refreshCalls.Load())
	for _, sess := range results {
		require.NotNil(t, sess)
		assert.Equal(t, "access-2", sess.AccessToken)
	}
}

func TestManager_SignInPersistsAndAnnounces(t *testing.T) {
	store := &MemoryStore{}
	api := &fakeAPI{
		signIn: func(email, password string) (*supabase.Session, error) {
			if password != "secret1" {
				return nil, &supabase.APIError{Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}
			}
			return wireSession("access", "refresh", time.Now().Add(time.Hour)), nil
		},
	}
	m := NewManager(api, store)
	defer m.Close()

	var log eventLog
	defer m.Subscribe(log.record)()

	_, err := m.SignIn(context.Background(), "a@example.com", "wrong")
	var backendErr *auth.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, "Invalid login credentials", err.Error())

	sess, err := m.SignIn(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)

	persisted, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "access", persisted.AccessToken)

	require.Eventually(t, func() bool {
		kinds := log.kinds()
		return len(kinds) == 1 && kinds[0] == auth.EventSignedIn
	}, time.Second, 5*time.Millisecond)
}

func TestManager_SignUpConfirmationPending(t *testing.T) {
	api := &fakeAPI{
		signUp: func(email, _ string) (*supabase.Session, *supabase.User, error) {
			return nil, &supabase.User{ID: "u9", Email: email}, nil
		},
	}
	m := NewManager(api, &MemoryStore{})
	defer m.Close()

	sess, err := m.SignUp(context.Background(), "new@example.com", "secret1")
	require.NoError(t, err)
	assert.Nil(t, sess)

	current, err := m.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestManager_SignOutDropsEvenOnFailure(t *testing.T) {
	store := &MemoryStore{}
	api := &fakeAPI{
		signIn: func(string, string) (*supabase.Session, error) {
			return wireSession("access", "refresh", time.Now().Add(time.Hour)), nil
		},
		signOutErr: &supabase.TransportError{Op: "POST /auth/v1/logout", Err: errors.New("connection refused")},
	}
	m := NewManager(api, store)
	defer m.Close()

	var log eventLog
	defer m.Subscribe(log.record)()

	_, err := m.SignIn(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)

	err = m.SignOut(context.Background())
	var networkErr *auth.NetworkError
	require.ErrorAs(t, err, &networkErr)
	assert.EqualValues(t, 1, api.signOutCalls.Load())

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, persisted)

	current, err := m.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)

	require.Eventually(t, func() bool {
		kinds := log.kinds()
		return len(kinds) == 2 && kinds[1] == auth.EventSignedOut
	}, time.Second, 5*time.Millisecond)
}

func TestManager_SignOutIgnoresExpiredServerSession(t *testing.T) {
	api := &fakeAPI{
		signIn: func(string, string) (*supabase.Session, error) {
			return wireSession("access", "refresh", time.Now().Add(time.Hour)), nil
		},
		signOutErr: &supabase.APIError{Status: 401, Message: "invalid JWT"},
	}
	m := NewManager(api, &MemoryStore{})
	defer m.Close()

	_, err := m.SignIn(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)
	assert.NoError(t, m.SignOut(context.Background()))
}

func TestManager_ScheduledRefresh(t *testing.T) {
	var n atomic.Int32
	api := &fakeAPI{
		signIn: func(string, string) (*supabase.Session, error) {
			return wireSessionIn("access", "refresh-0", 2*time.Second, time.Now()), nil
		},
		refresh: func(string) (*supabase.Session, error) {
			n.Add(1)
			return wireSession("access-2", "refresh-2", time.Now().Add(time.Hour)), nil
		},
	}
	m := NewManager(api, &MemoryStore{})
	m.minDelay = 10 * time.Millisecond
	defer m.Close()

	var log eventLog
	defer m.Subscribe(log.record)()

	_, err := m.SignIn(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)

	// A two second token gets half its lifetime as margin.
	require.Eventually(t, func() bool {
		kinds := log.kinds()
		return len(kinds) == 2 && kinds[1] == auth.EventTokenRefreshed
	}, 3*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, n.Load())

	sess, err := m.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", sess.AccessToken)
}

func TestManager_FetchProfile(t *testing.T) {
	api := &fakeAPI{profile: &supabase.Profile{
		ID:         "u1",
		Email:      "a@example.com",
		IsApproved: true,
		CreatedAt:  "2025-01-02T03:04:05Z",
		UpdatedAt:  "2025-01-03T03:04:05.123456",
	}}
	m := NewManager(api, nil)
	defer m.Close()

	profile, err := m.FetchProfile(context.Background(), &auth.Session{AccessToken: "tok", UserID: "u1"})
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.True(t, profile.IsApproved)
	assert.Equal(t, 2025, profile.CreatedAt.Year())
	assert.Equal(t, 3, profile.UpdatedAt.Day())
	assert.Equal(t, [2]string{"tok", "u1"}, api.lastProfile)

	api.profile = nil
	profile, err = m.FetchProfile(context.Background(), &auth.Session{AccessToken: "tok", UserID: "u1"})
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestManager_IdentityFromClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "u42",
		"email": "claims@example.com",
		"exp":   exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	api := &fakeAPI{
		signIn: func(string, string) (*supabase.Session, error) {
			return &supabase.Session{AccessToken: signed, RefreshToken: "r"}, nil
		},
	}
	m := NewManager(api, nil)
	defer m.Close()

	sess, err := m.SignIn(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u42", sess.UserID)
	assert.Equal(t, "claims@example.com", sess.Email)
	assert.True(t, exp.Equal(sess.ExpiresAt))
}

func TestManager_UnsubscribeStopsDelivery(t *testing.T) {
	api := &fakeAPI{
		signIn: func(string, string) (*supabase.Session, error) {
			return wireSession("access", "refresh", time.Now().Add(time.Hour)), nil
		},
	}
	m := NewManager(api, nil)
	defer m.Close()

	var log eventLog
	unsubscribe := m.Subscribe(log.record)
	unsubscribe()
	unsubscribe()

	_, err := m.SignIn(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, log.kinds())
}

func TestManager_EventsDeliveredInOrder(t *testing.T) {
	api := &fakeAPI{
		signIn: func(string, string) (*supabase.Session, error) {
			return wireSession("access", "refresh", time.Now().Add(time.Hour)), nil
		},
	}
	m := NewManager(api, nil)
	defer m.Close()

	var log eventLog
	defer m.Subscribe(func(ev auth.Event) {
		time.Sleep(2 * time.Millisecond)
		log.record(ev)
	})()

	for range 3 {
		_, err := m.SignIn(context.Background(), "a@example.com", "secret1")
		require.NoError(t, err)
		require.NoError(t, m.SignOut(context.Background()))
	}

	require.Eventually(t, func() bool { return len(log.kinds()) == 6 }, time.Second, 5*time.Millisecond)
	kinds := log.kinds()
	for i, kind := range kinds {
		want := auth.EventSignedIn
		if i%2 == 1 {
			want = auth.EventSignedOut
		}
		assert.Equal(t, want, kind, "event %d", i)
	}
}

func TestManager_SkewedClockDoesNotRefreshEarly(t *testing.T) {
	// The local clock runs two hours ahead of the server, so the server's
	// expires_at is already in the past here.
	skew := 2 * time.Hour
	clock := func() time.Time { return time.Now().Add(skew) }
	api := &fakeAPI{
		signIn: func(string, string) (*supabase.Session, error) {
			return wireSessionIn("access", "refresh", time.Hour, time.Now()), nil
		},
		refresh: func(string) (*supabase.Session, error) {
			return wireSessionIn("access-2", "refresh-2", time.Hour, time.Now()), nil
		},
	}
	m := NewManager(api, &MemoryStore{}, WithClock(clock))
	m.minDelay = 10 * time.Millisecond
	defer m.Close()

	sess, err := m.SignIn(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)
	assert.WithinDuration(t, clock().Add(time.Hour), sess.ExpiresAt, 5*time.Second)

	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 0, api.refreshCalls.Load())

	current, err := m.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access", current.AccessToken)
	assert.EqualValues(t, 0, api.refreshCalls.Load())
}

func TestManager_ShortLivedTokenDoesNotLoop(t *testing.T) {
	// A 30 second token is shorter than the one minute margin.
	api := &fakeAPI{
		signIn: func(string, string) (*supabase.Session, error) {
			return wireSessionIn("access", "refresh", 30*time.Second, time.Now()), nil
		},
		refresh: func(string) (*supabase.Session, error) {
			return wireSessionIn("access-2", "refresh-2", 30*time.Second, time.Now()), nil
		},
	}
	m := NewManager(api, &MemoryStore{})
	m.minDelay = 10 * time.Millisecond
	defer m.Close()

	_, err := m.SignIn(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 0, api.refreshCalls.Load())

	current, err := m.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access", current.AccessToken)
	assert.EqualValues(t, 0, api.refreshCalls.Load())
}

func TestManager_StaleTokenRefreshIsThrottled(t *testing.T) {
	// Without expires_in the server's expires_at is all there is, and
	// here it is already behind the local clock.
	stale := func() time.Time { return time.Now().Add(-time.Hour) }
	api := &fakeAPI{
		signIn: func(string, string) (*supabase.Session, error) {
			return wireSession("access", "refresh", stale()), nil
		},
		refresh: func(string) (*supabase.Session, error) {
			return wireSession("access-2", "refresh-2", stale()), nil
		},
	}
	m := NewManager(api, &MemoryStore{})
	defer m.Close()

	_, err := m.SignIn(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 0, api.refreshCalls.Load(), "refresh timer must wait at least %v", minRefreshDelay)
}

func TestManager_MarginFor(t *testing.T) {
	m := NewManager(&fakeAPI{}, nil)
	defer m.Close()

	issued := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		sess *auth.Session
		want time.Duration
	}{
		{"long-lived", &auth.Session{IssuedAt: issued, ExpiresAt: issued.Add(time.Hour)}, DefaultRefreshMargin},
		{"short-lived", &auth.Session{IssuedAt: issued, ExpiresAt: issued.Add(30 * time.Second)}, 15 * time.Second},
		{"unknown issue time", &auth.Session{ExpiresAt: issued.Add(30 * time.Second)}, DefaultRefreshMargin},
		{"expiry before issue", &auth.Session{IssuedAt: issued, ExpiresAt: issued.Add(-time.Minute)}, DefaultRefreshMargin},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, m.marginFor(tc.sess), tc.name)
	}
}

func TestManager_SignOutDuringRefreshWins(t *testing.T) {
	store := &MemoryStore{}
	stored := sampleSession()
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Save(stored))

	gate := make(chan struct{})
	api := &fakeAPI{
		refreshGate: gate,
		refresh: func(string) (*supabase.Session, error) {
			return wireSession("access-2", "refresh-2", time.Now().Add(time.Hour)), nil
		},
	}
	m := NewManager(api, store)
	defer m.Close()

	var log eventLog
	defer m.Subscribe(log.record)()

	done := make(chan *auth.Session, 1)
	go func() {
		sess, err := m.GetSession(context.Background())
		assert.NoError(t, err)
		done <- sess
	}()

	require.Eventually(t, func() bool { return api.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, m.SignOut(context.Background()))
	close(gate)

	assert.Nil(t, <-done, "refresh finishing after sign-out must not revive the session")

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, persisted)

	current, err := m.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)

	require.Eventually(t, func() bool { return len(log.kinds()) >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []auth.EventKind{auth.EventSignedOut}, log.kinds())
}
