package api

import (
	"github.com/starford/gts-portal/internal/mockstore"
	"github.com/starford/gts-portal/internal/models"
	"github.com/starford/gts-portal/internal/push"
)

// TablesResponse lists the tables with their row counts.
type TablesResponse struct {
	Tables []mockstore.TableInfo `json:"tables" validate:"required"`
}

// RowsResponse wraps a page of rows.
type RowsResponse struct {
	Rows   []mockstore.Record `json:"rows" validate:"required"`
	Total  int                `json:"total" example:"42" validate:"required"`
	Limit  int                `json:"limit,omitempty" example:"20"`
	Offset int                `json:"offset,omitempty" example:"0"`
}

// DeleteResponse reports whether a row was removed.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	User *models.User `json:"user" validate:"required"`
}

// PermissionRequest records the outcome of the browser permission prompt.
type PermissionRequest struct {
	ClientID   string          `json:"client_id" example:"web-42" validate:"required"`
	Permission push.Permission `json:"permission" example:"granted" validate:"required"`
}

// SubscribeRequest subscribes a client to notifications.
type SubscribeRequest struct {
	ClientID string `json:"client_id" example:"web-42" validate:"required"`
}

// SubscribeResponse is the outcome of a subscribe call.
type SubscribeResponse struct {
	Subscribed   bool               `json:"subscribed"`
	Subscription *push.Subscription `json:"subscription,omitempty"`
}

// UnsubscribeResponse reports whether a subscription was removed.
type UnsubscribeResponse struct {
	Unsubscribed bool `json:"unsubscribed"`
}

// NotifyResponse reports how many clients received a notification.
type NotifyResponse struct {
	Delivered int `json:"delivered" example:"3"`
}

// MediaUploadResponse is returned after a successful media upload.
type MediaUploadResponse struct {
	Filename string `json:"filename" example:"yacht.jpg" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/media/yacht.jpg" validate:"required"`
}
