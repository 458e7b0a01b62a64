// Package push is the push notification adapter. It tracks the permission and
// subscription of each portal client and delivers notifications through a
// Deliverer (the SSE broker in production).
//
// The adapter never returns an error to its caller. Environments that cannot
// show notifications report Supported=false with Permission=denied, and
// internal failures are logged and degrade to a no-op.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/gts-portal/internal/kv"
	"github.com/starford/gts-portal/internal/metrics"
)

// StateKey is the mirror key holding permissions and subscriptions.
const StateKey = "push_state"

// Permission is the outcome of the notification permission prompt.
type Permission string

// Permission values.
const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Environment describes where the portal is running.
type Environment struct {
	Secure   bool `json:"secure"`
	Embedded bool `json:"embedded"`
	Preview  bool `json:"preview"`
}

// Supported reports whether notifications can be shown in e.
func (e Environment) Supported() bool {
	return e.Secure && !e.Embedded && !e.Preview
}

// DetectEnvironment derives the environment from an incoming request.
// previewHosts are path.Match patterns such as "*.preview.gts.local".
func DetectEnvironment(r *http.Request, previewHosts []string) Environment {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)

	env := Environment{
		Secure: r.TLS != nil ||
			strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") ||
			host == "localhost" || host == "127.0.0.1" || host == "::1",
	}

	switch strings.ToLower(r.Header.Get("Sec-Fetch-Dest")) {
	case "iframe", "frame", "embed", "object":
		env.Embedded = true
	}

	for _, pattern := range previewHosts {
		if ok, _ := path.Match(strings.ToLower(pattern), host); ok {
			env.Preview = true
			break
		}
	}
	return env
}

// Status is what a client sees of the adapter.
type Status struct {
	Supported  bool       `json:"supported"`
	Permission Permission `json:"permission"`
	Subscribed bool       `json:"subscribed"`
}

// Subscription binds a portal client to a delivery endpoint.
type Subscription struct {
	ID        string `json:"id"`
	ClientID  string `json:"client_id"`
	Endpoint  string `json:"endpoint"`
	CreatedAt string `json:"created_at"`
}

// Notification is a message shown to subscribed clients. An empty ClientID
// addresses every subscribed client.
type Notification struct {
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
	Icon     string `json:"icon,omitempty"`
	Tag      string `json:"tag,omitempty"`
	URL      string `json:"url,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// Validate validates the notification.
func (n Notification) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Title, validation.Required, validation.Length(1, 120)),
		validation.Field(&n.Body, validation.Length(0, 1000)),
		validation.Field(&n.Tag, validation.Length(0, 64)),
	)
}

// Deliverer hands a notification to one client.
type Deliverer interface {
	Deliver(ctx context.Context, clientID string, n Notification) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, clientID string, n Notification) error

func (f DelivererFunc) Deliver(ctx context.Context, clientID string, n Notification) error {
	return f(ctx, clientID, n)
}

// Options configures an Adapter.
type Options struct {
	// Enabled switches the adapter on. A disabled adapter behaves as if every
	// environment were unsupported.
	Enabled bool
	Logger  *slog.Logger
	Now     func() time.Time
}

type state struct {
	Permissions   map[string]Permission   `json:"permissions"`
	Subscriptions map[string]Subscription `json:"subscriptions"`
}

// Adapter is the push notification adapter.
type Adapter struct {
	mu        sync.Mutex
	st        state
	mirror    kv.Provider
	deliverer Deliverer
	enabled   bool
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an adapter and restores its state from the mirror.
func New(ctx context.Context, mirror kv.Provider, d Deliverer, opts Options) *Adapter {
	a := &Adapter{
		st:        state{Permissions: map[string]Permission{}, Subscriptions: map[string]Subscription{}},
		mirror:    mirror,
		deliverer: d,
		enabled:   opts.Enabled,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}
	a.load(ctx)
	return a
}

func (a *Adapter) supported(env Environment) bool {
	return a.enabled && env.Supported()
}

func unsupported() Status {
	return Status{Supported: false, Permission: PermissionDenied}
}

// Status returns the adapter state for clientID.
func (a *Adapter) Status(_ context.Context, clientID string, env Environment) Status {
	if !a.supported(env) {
		return unsupported()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statusLocked(clientID)
}

func (a *Adapter) statusLocked(clientID string) Status {
	perm, ok := a.st.Permissions[clientID]
	if !ok {
		perm = PermissionDefault
	}
	_, subscribed := a.st.Subscriptions[clientID]
	return Status{Supported: true, Permission: perm, Subscribed: subscribed}
}

// RequestPermission records the outcome of the permission prompt. An
// unrecognised decision counts as a dismissed prompt. Denying permission
// drops any subscription.
func (a *Adapter) RequestPermission(ctx context.Context, clientID string, env Environment, decision Permission) Status {
	if !a.supported(env) || clientID == "" {
		return unsupported()
	}
	switch decision {
	case PermissionGranted, PermissionDenied:
	default:
		decision = PermissionDefault
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.st.Permissions[clientID] = decision
	if decision != PermissionGranted {
		delete(a.st.Subscriptions, clientID)
	}
	a.saveLocked(ctx)
	return a.statusLocked(clientID)
}

// Subscribe registers clientID for delivery. It requires granted permission
// and returns the existing subscription when there is one. ok is false when
// nothing was subscribed.
func (a *Adapter) Subscribe(ctx context.Context, clientID string, env Environment) (sub Subscription, ok bool) {
	if !a.supported(env) || clientID == "" {
		return Subscription{}, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.st.Permissions[clientID] != PermissionGranted {
		return Subscription{}, false
	}
	if existing, found := a.st.Subscriptions[clientID]; found {
		return existing, true
	}
	sub = Subscription{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Endpoint:  "/api/events?client=" + url.QueryEscape(clientID),
		CreatedAt: a.now().UTC().Format(time.RFC3339),
	}
	a.st.Subscriptions[clientID] = sub
	a.saveLocked(ctx)
	a.logger.Info("push: subscribed", slog.String("client", clientID))
	return sub, true
}

// Unsubscribe removes the subscription of clientID and reports whether there
// was one.
func (a *Adapter) Unsubscribe(ctx context.Context, clientID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.st.Subscriptions[clientID]; !ok {
		return false
	}
	delete(a.st.Subscriptions, clientID)
	a.saveLocked(ctx)
	return true
}

// Show delivers n to every addressed client that granted permission and is
// subscribed. It returns the number of successful deliveries.
func (a *Adapter) Show(ctx context.Context, n Notification) int {
	if !a.enabled || a.deliverer == nil {
		return 0
	}
	if err := n.Validate(); err != nil {
		a.logger.Warn("push: invalid notification", slog.String("error", err.Error()))
		return 0
	}

	a.mu.Lock()
	var targets []string
	for id := range a.st.Subscriptions {
		if n.ClientID != "" && id != n.ClientID {
			continue
		}
		if a.st.Permissions[id] == PermissionGranted {
			targets = append(targets, id)
		}
	}
	a.mu.Unlock()
	sort.Strings(targets)

	delivered := 0
	for _, id := range targets {
		if err := a.deliver(ctx, id, n); err != nil {
			a.logger.Warn("push: delivery failed",
				slog.String("client", id), slog.String("error", err.Error()))
			continue
		}
		delivered++
	}
	metrics.PushDeliveries.Add(float64(delivered))
	return delivered
}

func (a *Adapter) deliver(ctx context.Context, clientID string, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deliverer panic: %v", r)
		}
	}()
	return a.deliverer.Deliver(ctx, clientID, n)
}

func (a *Adapter) load(ctx context.Context) {
	if a.mirror == nil {
		return
	}
	data, err := a.mirror.Get(ctx, StateKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			a.logger.Warn("push: read state", slog.String("error", err.Error()))
		}
		return
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		a.logger.Warn("push: decode state", slog.String("error", err.Error()))
		return
	}
	if st.Permissions != nil {
		a.st.Permissions = st.Permissions
	}
	if st.Subscriptions != nil {
		a.st.Subscriptions = st.Subscriptions
	}
}

func (a *Adapter) saveLocked(ctx context.Context) {
	if a.mirror == nil {
		return
	}
	data, err := json.Marshal(a.st)
	if err == nil {
		err = a.mirror.Set(ctx, StateKey, data)
	}
	if err != nil {
		a.logger.Warn("push: write state", slog.String("error", err.Error()))
	}
}
