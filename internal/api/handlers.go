package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gts-portal/internal/apperr"
	"github.com/starford/gts-portal/internal/auth"
	"github.com/starford/gts-portal/internal/checksum"
	"github.com/starford/gts-portal/internal/dashboard"
	"github.com/starford/gts-portal/internal/mockstore"
	"github.com/starford/gts-portal/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	store      *mockstore.Store
	dashboards *dashboard.Builder
	auth       *auth.Service
}

// NewHandler creates a new Handler.
func NewHandler(store *mockstore.Store, dashboards *dashboard.Builder, authSvc *auth.Service) *Handler {
	return &Handler{store: store, dashboards: dashboards, auth: authSvc}
}

func etag(row mockstore.Record) string {
	return `"` + checksum.Of(row) + `"`
}

// prepareWrite hashes a plaintext password on users rows.
func prepareWrite(table string, rec mockstore.Record) error {
	if table != models.TableUsers {
		return nil
	}
	if err := auth.HashPassword(rec); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return nil
}

// ListTables handles GET /api/tables.
//
//	@Summary		List tables with row counts
//	@Tags			tables
//	@Produce		json
//	@Success		200	{object}	TablesResponse
//	@Security		BearerAuth
//	@Router			/tables [get]
func (h *Handler) ListTables(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, TablesResponse{Tables: h.store.Tables()})
}

// SelectRows handles GET /api/tables/{table}.
//
//	@Summary		Select rows with PostgREST-style filters
//	@Tags			tables
//	@Produce		json
//	@Param			table	path		string	true	"Table name"
//	@Param			order	query		string	false	"Sort keys, e.g. amount.desc,title"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	RowsResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tables/{table} [get]
func (h *Handler) SelectRows(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, "select rows", err)
		return
	}
	h.selectRows(w, r, q)
}

// QueryRows handles POST /api/tables/{table}/query.
//
//	@Summary		Select rows with a JSON query
//	@Tags			tables
//	@Accept			json
//	@Produce		json
//	@Param			table	path		string			true	"Table name"
//	@Param			body	body		mockstore.Query	true	"Query"
//	@Success		200		{object}	RowsResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tables/{table}/query [post]
func (h *Handler) QueryRows(w http.ResponseWriter, r *http.Request) {
	var q mockstore.Query
	if !decodeBody(w, r, &q) {
		return
	}
	h.selectRows(w, r, q)
}

func (h *Handler) selectRows(w http.ResponseWriter, r *http.Request, q mockstore.Query) {
	table := chi.URLParam(r, "table")
	q = auth.RestrictQuery(table, q)

	rows, total, err := h.store.SelectPage(r.Context(), table, q)
	if err != nil {
		writeError(w, "select rows", err)
		return
	}
	writeJSON(w, http.StatusOK, RowsResponse{
		Rows:   auth.Redact(rows...),
		Total:  total,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

// GetRow handles GET /api/tables/{table}/{id}.
//
//	@Summary		Get a single row
//	@Tags			tables
//	@Produce		json
//	@Param			table	path		string	true	"Table name"
//	@Param			id		path		string	true	"Row id"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tables/{table}/{id} [get]
func (h *Handler) GetRow(w http.ResponseWriter, r *http.Request) {
	row, err := h.store.Get(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get row", err)
		return
	}
	w.Header().Set("ETag", etag(row))
	writeJSON(w, http.StatusOK, auth.Redact(row)[0])
}

// InsertRow handles POST /api/tables/{table}.
//
//	@Summary		Insert a row
//	@Tags			tables
//	@Accept			json
//	@Produce		json
//	@Param			table	path		string			true	"Table name"
//	@Param			body	body		map[string]any	true	"Row"
//	@Success		201		{object}	map[string]any
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tables/{table} [post]
func (h *Handler) InsertRow(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	var rec mockstore.Record
	if !decodeBody(w, r, &rec) {
		return
	}
	if err := prepareWrite(table, rec); err != nil {
		writeError(w, "insert row", err)
		return
	}
	row, err := h.store.Insert(r.Context(), table, rec)
	if err != nil {
		writeError(w, "insert row", err)
		return
	}
	w.Header().Set("ETag", etag(row))
	writeJSON(w, http.StatusCreated, auth.Redact(row)[0])
}

// UpdateRow handles PATCH /api/tables/{table}/{id}.
//
//	@Summary		Shallow-merge fields into a row with optimistic concurrency
//	@Tags			tables
//	@Accept			json
//	@Produce		json
//	@Param			table		path		string			true	"Table name"
//	@Param			id			path		string			true	"Row id"
//	@Param			If-Match	header		string			false	"ETag of the row being replaced"
//	@Param			body		body		map[string]any	true	"Fields to merge"
//	@Success		200			{object}	map[string]any
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tables/{table}/{id} [patch]
func (h *Handler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	var patch mockstore.Record
	if !decodeBody(w, r, &patch) {
		return
	}
	if err := prepareWrite(table, patch); err != nil {
		writeError(w, "update row", err)
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	row, err := h.store.Update(r.Context(), table, chi.URLParam(r, "id"), patch, ifMatch)
	if err != nil {
		writeError(w, "update row", err)
		return
	}
	w.Header().Set("ETag", etag(row))
	writeJSON(w, http.StatusOK, auth.Redact(row)[0])
}

// DeleteRow handles DELETE /api/tables/{table}/{id}.
//
//	@Summary		Delete a row; repeated deletes report deleted=false
//	@Tags			tables
//	@Produce		json
//	@Param			table	path		string	true	"Table name"
//	@Param			id		path		string	true	"Row id"
//	@Success		200		{object}	DeleteResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tables/{table}/{id} [delete]
func (h *Handler) DeleteRow(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.Delete(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "delete row", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

// Dashboard handles GET /api/dashboards/{role}.
//
//	@Summary		Role portal statistics
//	@Tags			dashboards
//	@Produce		json
//	@Param			role	path		string	true	"Portal role"	Enums(crm, partner, contractor, loyalty, concierge)
//	@Success		200		{object}	dashboard.Dashboard
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dashboards/{role} [get]
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboards.Build(r.Context(), chi.URLParam(r, "role"))
	if err != nil {
		writeError(w, "build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Login handles POST /api/auth/login.
//
//	@Summary		Portal login
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		auth.Credentials	true	"Credentials"
//	@Success		200		{object}	LoginResponse
//	@Failure		401		{object}	errResponse
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var c auth.Credentials
	if !decodeBody(w, r, &c) {
		return
	}
	u, err := h.auth.Login(r.Context(), c)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, errorBody(auth.LoginFailedMessage))
			return
		}
		writeError(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{User: u})
}

// Reset handles POST /api/admin/reset.
//
//	@Summary		Reset every table to the seed fixtures
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	TablesResponse
//	@Security		BearerAuth
//	@Router			/admin/reset [post]
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(r.Context()); err != nil {
		writeError(w, "reset", err)
		return
	}
	writeJSON(w, http.StatusOK, TablesResponse{Tables: h.store.Tables()})
}
