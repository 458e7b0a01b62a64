package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gts-portal/internal/auth"
	"github.com/starford/gts-portal/internal/dashboard"
	"github.com/starford/gts-portal/internal/mockstore"
	"github.com/starford/gts-portal/internal/push"
)

// Deps are the services the API is built on.
type Deps struct {
	Store      *mockstore.Store
	Dashboards *dashboard.Builder
	Auth       *auth.Service
	Push       *push.Adapter

	// PreviewHosts are host patterns where push is reported unsupported.
	PreviewHosts []string
	// MediaRoot is the directory uploaded images are stored in.
	MediaRoot string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler

	AuthEnabled bool
	Token       string
	// Latency is the simulated response delay.
	Latency time.Duration
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d.Store, d.Dashboards, d.Auth)
	ph := NewPushHandler(d.Push, d.PreviewHosts)
	mh := NewMediaHandler(d.MediaRoot)

	r := chi.NewRouter()
	r.Use(LatencyMiddleware(d.Latency))

	// Portal login is checked against the users table, not the API token.
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(d.AuthEnabled, d.Token))

		// Tables.
		r.Get("/tables", h.ListTables)
		r.Get("/tables/{table}", h.SelectRows)
		r.Post("/tables/{table}", h.InsertRow)
		r.Post("/tables/{table}/query", h.QueryRows)
		r.Get("/tables/{table}/{id}", h.GetRow)
		r.Patch("/tables/{table}/{id}", h.UpdateRow)
		r.Delete("/tables/{table}/{id}", h.DeleteRow)

		// Dashboards.
		r.Get("/dashboards/{role}", h.Dashboard)

		// Push notifications.
		r.Get("/push/status", ph.Status)
		r.Post("/push/permission", ph.RequestPermission)
		r.Post("/push/subscription", ph.Subscribe)
		r.Delete("/push/subscription", ph.Unsubscribe)
		r.Post("/push/notify", ph.Notify)

		// Admin.
		r.Post("/admin/reset", h.Reset)

		// Media.
		r.Post("/media", mh.Upload)
		r.Get("/media/{filename}", mh.ServeFile)

		// SSE endpoint (protected by same auth middleware).
		if d.Events != nil {
			r.Get("/events", d.Events.ServeHTTP)
		}
	})

	return r
}
