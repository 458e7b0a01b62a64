package push

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/gts-portal/internal/kv"
)

var secure = Environment{Secure: true}

type recorder struct {
	mu   sync.Mutex
	got  map[string][]Notification
	fail map[string]bool
}

func newRecorder() *recorder {
	return &recorder{got: map[string][]Notification{}, fail: map[string]bool{}}
}

func (r *recorder) Deliver(_ context.Context, clientID string, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[clientID] {
		return errors.New("gone")
	}
	r.got[clientID] = append(r.got[clientID], n)
	return nil
}

type brokenMirror struct{ kv.Provider }

func (brokenMirror) Get(context.Context, string) ([]byte, error) { return nil, errors.New("disk on fire") }
func (brokenMirror) Set(context.Context, string, []byte) error  { return errors.New("disk on fire") }

func newAdapter(t *testing.T, mirror kv.Provider, d Deliverer) *Adapter {
	t.Helper()
	return New(context.Background(), mirror, d, Options{
		Enabled: true,
		Now:     func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) },
	})
}

func TestDetectEnvironment(t *testing.T) {
	previews := []string{"*.preview.gts.local"}

	r := httptest.NewRequest("GET", "http://portal.gts.local/api/push/status", nil)
	assert.Equal(t, Environment{}, DetectEnvironment(r, previews))

	r = httptest.NewRequest("GET", "http://localhost:8080/api/push/status", nil)
	assert.True(t, DetectEnvironment(r, previews).Supported())

	r = httptest.NewRequest("GET", "http://portal.gts.local/", nil)
	r.TLS = &tls.ConnectionState{}
	assert.True(t, DetectEnvironment(r, previews).Secure)

	r = httptest.NewRequest("GET", "http://portal.gts.local/", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("Sec-Fetch-Dest", "iframe")
	env := DetectEnvironment(r, previews)
	assert.True(t, env.Secure)
	assert.True(t, env.Embedded)
	assert.False(t, env.Supported())

	r = httptest.NewRequest("GET", "http://abc.preview.gts.local:443/", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	env = DetectEnvironment(r, previews)
	assert.True(t, env.Preview)
	assert.False(t, env.Supported())
}

func TestUnsupportedEnvironment_ReportsDeniedAndNoOps(t *testing.T) {
	rec := newRecorder()
	a := newAdapter(t, kv.NewMemory(), rec)
	ctx := context.Background()

	for _, env := range []Environment{
		{},
		{Secure: true, Embedded: true},
		{Secure: true, Preview: true},
	} {
		st := a.Status(ctx, "web-1", env)
		assert.Equal(t, Status{Supported: false, Permission: PermissionDenied}, st)

		st = a.RequestPermission(ctx, "web-1", env, PermissionGranted)
		assert.False(t, st.Supported)
		assert.Equal(t, PermissionDenied, st.Permission)

		_, ok := a.Subscribe(ctx, "web-1", env)
		assert.False(t, ok)
	}
	assert.Equal(t, 0, a.Show(ctx, Notification{Title: "Hello"}))
	assert.Empty(t, rec.got)
}

func TestDisabledAdapter_Unsupported(t *testing.T) {
	a := New(context.Background(), kv.NewMemory(), newRecorder(), Options{Enabled: false})
	assert.False(t, a.Status(context.Background(), "web-1", secure).Supported)
}

func TestPermissionFlow(t *testing.T) {
	a := newAdapter(t, kv.NewMemory(), newRecorder())
	ctx := context.Background()

	assert.Equal(t, Status{Supported: true, Permission: PermissionDefault}, a.Status(ctx, "web-1", secure))

	_, ok := a.Subscribe(ctx, "web-1", secure)
	assert.False(t, ok, "subscribe requires granted permission")

	st := a.RequestPermission(ctx, "web-1", secure, PermissionGranted)
	assert.Equal(t, PermissionGranted, st.Permission)

	sub, ok := a.Subscribe(ctx, "web-1", secure)
	require.True(t, ok)
	assert.Equal(t, "web-1", sub.ClientID)
	assert.Equal(t, "/api/events?client=web-1", sub.Endpoint)
	assert.Equal(t, "2026-06-01T09:00:00Z", sub.CreatedAt)

	again, ok := a.Subscribe(ctx, "web-1", secure)
	require.True(t, ok)
	assert.Equal(t, sub, again, "re-subscribing returns the existing subscription")
	assert.True(t, a.Status(ctx, "web-1", secure).Subscribed)

	st = a.RequestPermission(ctx, "web-1", secure, PermissionDenied)
	assert.Equal(t, PermissionDenied, st.Permission)
	assert.False(t, st.Subscribed, "denying drops the subscription")
}

func TestRequestPermission_UnknownDecisionIsDefault(t *testing.T) {
	a := newAdapter(t, kv.NewMemory(), newRecorder())
	st := a.RequestPermission(context.Background(), "web-1", secure, Permission("maybe"))
	assert.Equal(t, PermissionDefault, st.Permission)
}

func TestUnsubscribe(t *testing.T) {
	a := newAdapter(t, kv.NewMemory(), newRecorder())
	ctx := context.Background()
	a.RequestPermission(ctx, "web-1", secure, PermissionGranted)
	_, ok := a.Subscribe(ctx, "web-1", secure)
	require.True(t, ok)

	assert.True(t, a.Unsubscribe(ctx, "web-1"))
	assert.False(t, a.Unsubscribe(ctx, "web-1"))
	assert.False(t, a.Status(ctx, "web-1", secure).Subscribed)
}

func TestShow_DeliversToGrantedSubscribers(t *testing.T) {
	rec := newRecorder()
	a := newAdapter(t, kv.NewMemory(), rec)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		a.RequestPermission(ctx, id, secure, PermissionGranted)
		_, ok := a.Subscribe(ctx, id, secure)
		require.True(t, ok)
	}
	rec.fail["c"] = true

	n := a.Show(ctx, Notification{Title: "Yacht ready", Body: "Berth 4"})
	assert.Equal(t, 2, n)
	assert.Len(t, rec.got["a"], 1)
	assert.Len(t, rec.got["b"], 1)

	n = a.Show(ctx, Notification{Title: "Only you", ClientID: "b"})
	assert.Equal(t, 1, n)
	assert.Len(t, rec.got["a"], 1)
	assert.Len(t, rec.got["b"], 2)
}

func TestShow_InvalidNotification(t *testing.T) {
	rec := newRecorder()
	a := newAdapter(t, kv.NewMemory(), rec)
	ctx := context.Background()
	a.RequestPermission(ctx, "a", secure, PermissionGranted)
	a.Subscribe(ctx, "a", secure)

	assert.Error(t, Notification{}.Validate())
	assert.Equal(t, 0, a.Show(ctx, Notification{}))
	assert.Empty(t, rec.got)
}

func TestShow_DelivererPanicIsContained(t *testing.T) {
	d := DelivererFunc(func(context.Context, string, Notification) error { panic("boom") })
	a := newAdapter(t, kv.NewMemory(), d)
	ctx := context.Background()
	a.RequestPermission(ctx, "a", secure, PermissionGranted)
	a.Subscribe(ctx, "a", secure)

	assert.NotPanics(t, func() {
		assert.Equal(t, 0, a.Show(ctx, Notification{Title: "x"}))
	})
}

func TestState_PersistsAcrossAdapters(t *testing.T) {
	mirror := kv.NewMemory()
	ctx := context.Background()
	a := newAdapter(t, mirror, newRecorder())
	a.RequestPermission(ctx, "web-1", secure, PermissionGranted)
	sub, _ := a.Subscribe(ctx, "web-1", secure)

	_, err := mirror.Get(ctx, StateKey)
	require.NoError(t, err)

	b := newAdapter(t, mirror, newRecorder())
	st := b.Status(ctx, "web-1", secure)
	assert.Equal(t, Status{Supported: true, Permission: PermissionGranted, Subscribed: true}, st)
	again, _ := b.Subscribe(ctx, "web-1", secure)
	assert.Equal(t, sub.ID, again.ID)
}

func TestBrokenMirror_Degrades(t *testing.T) {
	rec := newRecorder()
	var a *Adapter
	require.NotPanics(t, func() { a = newAdapter(t, brokenMirror{}, rec) })
	ctx := context.Background()

	st := a.RequestPermission(ctx, "web-1", secure, PermissionGranted)
	assert.Equal(t, PermissionGranted, st.Permission)
	_, ok := a.Subscribe(ctx, "web-1", secure)
	assert.True(t, ok)
	assert.Equal(t, 1, a.Show(ctx, Notification{Title: "still works"}))
}
