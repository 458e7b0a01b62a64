package api

import (
	"net/http"

	"github.com/starford/gts-portal/internal/push"
)

// PushHandler exposes the push notification adapter.
type PushHandler struct {
	adapter      *push.Adapter
	previewHosts []string
}

// NewPushHandler creates a PushHandler. previewHosts are host patterns of
// preview deployments, where notifications are unsupported.
func NewPushHandler(adapter *push.Adapter, previewHosts []string) *PushHandler {
	return &PushHandler{adapter: adapter, previewHosts: previewHosts}
}

func (h *PushHandler) env(r *http.Request) push.Environment {
	return push.DetectEnvironment(r, h.previewHosts)
}

// Status handles GET /api/push/status?client=<id>.
//
//	@Summary		Push support, permission, and subscription of a client
//	@Tags			push
//	@Produce		json
//	@Param			client	query		string	true	"Client id"
//	@Success		200		{object}	push.Status
//	@Security		BearerAuth
//	@Router			/push/status [get]
func (h *PushHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.adapter.Status(r.Context(), r.URL.Query().Get("client"), h.env(r)))
}

// RequestPermission handles POST /api/push/permission.
//
//	@Summary		Record the permission prompt outcome
//	@Tags			push
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PermissionRequest	true	"Decision"
//	@Success		200		{object}	push.Status
//	@Security		BearerAuth
//	@Router			/push/permission [post]
func (h *PushHandler) RequestPermission(w http.ResponseWriter, r *http.Request) {
	var req PermissionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.adapter.RequestPermission(r.Context(), req.ClientID, h.env(r), req.Permission))
}

// Subscribe handles POST /api/push/subscription.
//
//	@Summary		Subscribe a client to notifications
//	@Tags			push
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SubscribeRequest	true	"Client"
//	@Success		200		{object}	SubscribeResponse
//	@Security		BearerAuth
//	@Router			/push/subscription [post]
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sub, ok := h.adapter.Subscribe(r.Context(), req.ClientID, h.env(r))
	resp := SubscribeResponse{Subscribed: ok}
	if ok {
		resp.Subscription = &sub
	}
	writeJSON(w, http.StatusOK, resp)
}

// Unsubscribe handles DELETE /api/push/subscription?client=<id>.
//
//	@Summary		Remove the subscription of a client
//	@Tags			push
//	@Produce		json
//	@Param			client	query		string	true	"Client id"
//	@Success		200		{object}	UnsubscribeResponse
//	@Security		BearerAuth
//	@Router			/push/subscription [delete]
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	ok := h.adapter.Unsubscribe(r.Context(), r.URL.Query().Get("client"))
	writeJSON(w, http.StatusOK, UnsubscribeResponse{Unsubscribed: ok})
}

// Notify handles POST /api/push/notify.
//
//	@Summary		Show a notification to subscribed clients
//	@Tags			push
//	@Accept			json
//	@Produce		json
//	@Param			body	body		push.Notification	true	"Notification"
//	@Success		200		{object}	NotifyResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/push/notify [post]
func (h *PushHandler) Notify(w http.ResponseWriter, r *http.Request) {
	var n push.Notification
	if !decodeBody(w, r, &n) {
		return
	}
	if err := n.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, NotifyResponse{Delivered: h.adapter.Show(r.Context(), n)})
}
