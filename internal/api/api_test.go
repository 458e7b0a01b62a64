package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gts-portal/internal/auth"
	"github.com/starford/gts-portal/internal/dashboard"
	"github.com/starford/gts-portal/internal/kv"
	"github.com/starford/gts-portal/internal/mockstore"
	"github.com/starford/gts-portal/internal/push"
	"github.com/starford/gts-portal/internal/testutil"
)

type deliveries struct {
	mu  sync.Mutex
	got map[string]int
}

func (d *deliveries) Deliver(_ context.Context, clientID string, _ push.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got[clientID]++
	return nil
}

type testServer struct {
	store     *mockstore.Store
	router    http.Handler
	mediaRoot string
	delivered *deliveries
}

// testEnv builds a router over a freshly seeded in-memory store.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) *testServer {
	t.Helper()
	return testEnvWithEvents(t, authToken, nil)
}

func testEnvWithEvents(t *testing.T, authToken string, events http.Handler) *testServer {
	t.Helper()

	now := testutil.Now
	store := testutil.SeededStore(t)

	d := &deliveries{got: map[string]int{}}
	adapter := push.New(context.Background(), kv.NewMemory(), d, push.Options{Enabled: true, Now: now})
	mediaRoot := filepath.Join(t.TempDir(), "media")

	router := NewRouter(Deps{
		Store:        store,
		Dashboards:   dashboard.NewBuilder(store, now),
		Auth:         auth.NewService(store),
		Push:         adapter,
		PreviewHosts: []string{"*.preview.gts.local"},
		MediaRoot:    mediaRoot,
		Events:       events,
		AuthEnabled:  authToken != "",
		Token:        authToken,
	})
	return &testServer{store: store, router: router, mediaRoot: mediaRoot, delivered: d}
}

func (s *testServer) do(t *testing.T, method, target string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

type rowsBody struct {
	Rows  []map[string]any `json:"rows"`
	Total int              `json:"total"`
}

func rowIDs(rows []map[string]any) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i], _ = r["id"].(string)
	}
	return out
}

func TestListTables(t *testing.T) {
	s := testEnv(t, "")
	w := s.do(t, http.MethodGet, "/tables", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[TablesResponse](t, w)
	if len(resp.Tables) != 9 {
		t.Fatalf("tables = %d, want 9", len(resp.Tables))
	}
}

func TestSelectRows_WhereVIP(t *testing.T) {
	s := testEnv(t, "")
	w := s.do(t, http.MethodGet, "/tables/clients?status=vip&order=id", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[rowsBody](t, w)
	if got := strings.Join(rowIDs(resp.Rows), ","); got != "cl-001,cl-004" {
		t.Errorf("ids = %s", got)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
}

func TestSelectRows_InOrderLimit(t *testing.T) {
	s := testEnv(t, "")
	w := s.do(t, http.MethodGet, "/tables/deals?stage=in.(won,lost)&order=amount.desc&limit=2", nil)
	resp := decode[rowsBody](t, w)
	if got := strings.Join(rowIDs(resp.Rows), ","); got != "dl-007,dl-004" {
		t.Errorf("ids = %s", got)
	}
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3 (ignores limit)", resp.Total)
	}
}

func TestSelectRows_NumericFilter(t *testing.T) {
	s := testEnv(t, "")
	resp := decode[rowsBody](t, s.do(t, http.MethodGet, "/tables/clients?loyalty_points=7200", nil))
	if got := strings.Join(rowIDs(resp.Rows), ","); got != "cl-002" {
		t.Errorf("ids = %s", got)
	}
}

func TestSelectRows_BadQuery(t *testing.T) {
	s := testEnv(t, "")
	if w := s.do(t, http.MethodGet, "/tables/clients?limit=-3", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", w.Code)
	}
}

func TestSelectRows_UnknownTable(t *testing.T) {
	s := testEnv(t, "")
	if w := s.do(t, http.MethodGet, "/tables/yachts", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown table = %d, want 404", w.Code)
	}
}

func TestQueryRows_JSON(t *testing.T) {
	s := testEnv(t, "")
	w := s.do(t, http.MethodPost, "/tables/bookings/query", map[string]any{
		"where":    map[string]any{"status": []string{"pending", "confirmed"}},
		"order_by": []map[string]any{{"field": "total", "desc": true}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[rowsBody](t, w)
	if resp.Total != 4 || len(resp.Rows) != 4 {
		t.Fatalf("total = %d rows = %d, want 4", resp.Total, len(resp.Rows))
	}
	if resp.Rows[0]["id"] != "bk-001" {
		t.Errorf("first = %v, want bk-001", resp.Rows[0]["id"])
	}
}

func TestInsertGetRow(t *testing.T) {
	s := testEnv(t, "")

	w := s.do(t, http.MethodPost, "/tables/activities", map[string]any{"client_id": "cl-001", "subject": "Follow up"})
	if w.Code != http.StatusCreated {
		t.Fatalf("insert = %d, body = %s", w.Code, w.Body.String())
	}
	row := decode[map[string]any](t, w)
	id, _ := row["id"].(string)
	if id == "" || row["created_at"] == nil || row["created_at"] != row["updated_at"] {
		t.Fatalf("insert did not stamp id/timestamps: %v", row)
	}

	w = s.do(t, http.MethodGet, "/tables/activities/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("missing ETag")
	}
	if got := decode[map[string]any](t, w); got["subject"] != "Follow up" {
		t.Errorf("subject = %v", got["subject"])
	}
}

func TestInsertRow_Duplicate(t *testing.T) {
	s := testEnv(t, "")
	w := s.do(t, http.MethodPost, "/tables/clients", map[string]any{"id": "cl-001"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate = %d, want 409", w.Code)
	}
}

func TestInsertRow_InvalidJSON(t *testing.T) {
	s := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/tables/clients", strings.NewReader("{"))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	s := testEnv(t, "")

	w := s.do(t, http.MethodGet, "/tables/clients/cl-002", nil)
	tag := w.Header().Get("ETag")

	w = s.do(t, http.MethodPatch, "/tables/clients/cl-002", map[string]any{"status": "vip"}, "If-Match", tag)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	row := decode[map[string]any](t, w)
	if row["status"] != "vip" || row["name"] == nil {
		t.Errorf("merge lost fields: %v", row)
	}

	// Stale tag.
	w = s.do(t, http.MethodPatch, "/tables/clients/cl-002", map[string]any{"status": "lead"}, "If-Match", tag)
	if w.Code != http.StatusConflict {
		t.Errorf("stale update = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	s := testEnv(t, "")
	w := s.do(t, http.MethodPatch, "/tables/deals/dl-001", map[string]any{"stage": "won"})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d", w.Code)
	}
}

func TestUpdateRow_NotFound(t *testing.T) {
	s := testEnv(t, "")
	w := s.do(t, http.MethodPatch, "/tables/deals/ghost", map[string]any{"stage": "won"})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestDeleteRow_Idempotent(t *testing.T) {
	s := testEnv(t, "")

	w := s.do(t, http.MethodDelete, "/tables/fleet/fl-001", nil)
	if w.Code != http.StatusOK || !decode[DeleteResponse](t, w).Deleted {
		t.Fatalf("first delete = %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, http.MethodDelete, "/tables/fleet/fl-001", nil)
	if w.Code != http.StatusOK || decode[DeleteResponse](t, w).Deleted {
		t.Fatalf("second delete = %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodGet, "/tables/fleet/fl-001", nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d, want 404", w.Code)
	}
}

func TestUsers_PasswordHashNeverReturned(t *testing.T) {
	s := testEnv(t, "")

	w := s.do(t, http.MethodGet, "/tables/users", nil)
	if strings.Contains(w.Body.String(), "password_hash") {
		t.Error("list leaked password_hash")
	}
	w = s.do(t, http.MethodGet, "/tables/users/usr-admin", nil)
	if strings.Contains(w.Body.String(), "password_hash") {
		t.Error("get leaked password_hash")
	}
	w = s.do(t, http.MethodPost, "/tables/users", map[string]any{"email": "new@gts.example", "password": "pw-123"})
	if w.Code != http.StatusCreated || strings.Contains(w.Body.String(), "password") {
		t.Fatalf("insert user = %d %s", w.Code, w.Body.String())
	}

	// The stored hash works for login.
	w = s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "new@gts.example", "password": "pw-123"})
	if w.Code != http.StatusOK {
		t.Errorf("login new user = %d", w.Code)
	}
}

func TestUsers_CannotOrderByPasswordHash(t *testing.T) {
	s := testEnv(t, "")

	plain := decode[rowsBody](t, s.do(t, http.MethodGet, "/tables/users", nil))
	for _, order := range []string{"password_hash", "password_hash.desc"} {
		w := s.do(t, http.MethodGet, "/tables/users?order="+order, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("order=%s: status %d", order, w.Code)
		}
		got := decode[rowsBody](t, w)
		if strings.Join(rowIDs(got.Rows), ",") != strings.Join(rowIDs(plain.Rows), ",") {
			t.Errorf("order=%s reordered rows: %v", order, rowIDs(got.Rows))
		}
	}
}

func TestLogin(t *testing.T) {
	s := testEnv(t, "secret")

	// Login is reachable without the API token.
	w := s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "sales@gts.example", "password": "sales123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[LoginResponse](t, w)
	if resp.User == nil || resp.User.Role != "crm" || resp.User.PasswordHash != "" {
		t.Errorf("user = %+v", resp.User)
	}

	w = s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "sales@gts.example", "password": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", w.Code)
	}
	if got := decode[errResponse](t, w).Error; got != "Invalid email or password" {
		t.Errorf("error = %q", got)
	}
}

func TestDashboard(t *testing.T) {
	s := testEnv(t, "")
	w := s.do(t, http.MethodGet, "/dashboards/crm", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Role string `json:"role"`
		Data struct {
			WonRevenue float64 `json:"won_revenue"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Role != "crm" || resp.Data.WonRevenue != 63000 {
		t.Errorf("dashboard = %+v", resp)
	}

	if w := s.do(t, http.MethodGet, "/dashboards/nobody", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown role = %d, want 404", w.Code)
	}
}

func TestAdminReset(t *testing.T) {
	s := testEnv(t, "")
	s.do(t, http.MethodDelete, "/tables/clients/cl-001", nil)

	w := s.do(t, http.MethodPost, "/admin/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reset = %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/tables/clients/cl-001", nil); w.Code != http.StatusOK {
		t.Errorf("row not restored: %d", w.Code)
	}
}

// Push tests.

func TestPush_FullFlow(t *testing.T) {
	s := testEnv(t, "")
	https := []string{"X-Forwarded-Proto", "https"}

	w := s.do(t, http.MethodGet, "/push/status?client=web-1", nil, https...)
	if st := decode[push.Status](t, w); !st.Supported || st.Permission != push.PermissionDefault {
		t.Fatalf("status = %+v", st)
	}

	w = s.do(t, http.MethodPost, "/push/permission", PermissionRequest{ClientID: "web-1", Permission: push.PermissionGranted}, https...)
	if st := decode[push.Status](t, w); st.Permission != push.PermissionGranted {
		t.Fatalf("permission = %+v", st)
	}

	w = s.do(t, http.MethodPost, "/push/subscription", SubscribeRequest{ClientID: "web-1"}, https...)
	sub := decode[SubscribeResponse](t, w)
	if !sub.Subscribed || sub.Subscription == nil {
		t.Fatalf("subscribe = %+v", sub)
	}

	w = s.do(t, http.MethodPost, "/push/notify", push.Notification{Title: "Your yacht is ready"})
	if n := decode[NotifyResponse](t, w).Delivered; n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}
	if s.delivered.got["web-1"] != 1 {
		t.Errorf("deliverer saw %v", s.delivered.got)
	}

	w = s.do(t, http.MethodDelete, "/push/subscription?client=web-1", nil)
	if !decode[UnsubscribeResponse](t, w).Unsubscribed {
		t.Error("unsubscribe reported false")
	}
}

func TestPush_EmbeddedIsUnsupported(t *testing.T) {
	s := testEnv(t, "")
	w := s.do(t, http.MethodGet, "/push/status?client=web-1", nil,
		"X-Forwarded-Proto", "https", "Sec-Fetch-Dest", "iframe")
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	st := decode[push.Status](t, w)
	if st.Supported || st.Permission != push.PermissionDenied {
		t.Errorf("status = %+v, want unsupported/denied", st)
	}

	w = s.do(t, http.MethodPost, "/push/subscription", SubscribeRequest{ClientID: "web-1"}, "Sec-Fetch-Dest", "iframe")
	if w.Code != http.StatusOK || decode[SubscribeResponse](t, w).Subscribed {
		t.Errorf("subscribe in iframe = %d %s", w.Code, w.Body.String())
	}
}

func TestPush_NotifyValidation(t *testing.T) {
	s := testEnv(t, "")
	w := s.do(t, http.MethodPost, "/push/notify", push.Notification{Body: "no title"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("notify without title = %d, want 400", w.Code)
	}
}

// Auth middleware tests.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	s := testEnv(t, "secret123")
	w := s.do(t, http.MethodGet, "/tables", nil, "Authorization", "Bearer secret123")
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	s := testEnv(t, "secret123")
	if w := s.do(t, http.MethodGet, "/tables", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	s := testEnv(t, "secret123")
	if w := s.do(t, http.MethodGet, "/tables", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestLatencyMiddleware(t *testing.T) {
	h := LatencyMiddleware(30 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	start := time.Now()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Error("request was not delayed")
	}
}

func TestLatencyMiddleware_ClientGone(t *testing.T) {
	called := false
	h := LatencyMiddleware(time.Hour)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
	if called {
		t.Error("handler ran after client went away")
	}
}

// SSE endpoint auth tests.

// stubEvents writes headers and blocks until the request context is done.
var stubEvents = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	s := testEnvWithEvents(t, "secret", stubEvents)
	if w := s.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	s := testEnvWithEvents(t, "tok", stubEvents)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// Media tests.

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// pixelPNG is a 1x1 PNG.
var pixelPNG, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func TestUploadAndServeMedia(t *testing.T) {
	s := testEnv(t, "")

	w := uploadFile(t, s.router, "yacht.png", pixelPNG)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[MediaUploadResponse](t, w)
	if resp.Filename != "yacht.png" || resp.URL != "/media/yacht.png" || resp.Size != int64(len(pixelPNG)) {
		t.Errorf("resp = %+v", resp)
	}

	data, err := os.ReadFile(filepath.Join(s.mediaRoot, "yacht.png"))
	if err != nil {
		t.Fatalf("file not on disk: %v", err)
	}
	if !bytes.Equal(data, pixelPNG) {
		t.Errorf("content mismatch")
	}

	w = s.do(t, http.MethodGet, "/media/yacht.png", nil)
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), pixelPNG) {
		t.Errorf("serve = %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" || !strings.Contains(w.Header().Get("Content-Security-Policy"), "sandbox") {
		t.Errorf("serve headers = %v", w.Header())
	}
}

func TestUploadMedia_UnsupportedType(t *testing.T) {
	s := testEnv(t, "")
	if w := uploadFile(t, s.router, "notes.txt", []byte("x")); w.Code != http.StatusBadRequest {
		t.Errorf("txt upload = %d, want 400", w.Code)
	}
}

func TestUploadMedia_ExistingFileNotOverwritten(t *testing.T) {
	s := testEnv(t, "")
	if w := uploadFile(t, s.router, "yacht.png", pixelPNG); w.Code != http.StatusCreated {
		t.Fatalf("first upload = %d", w.Code)
	}

	other := append(append([]byte{}, pixelPNG...), 0x00)
	if w := uploadFile(t, s.router, "yacht.png", other); w.Code != http.StatusConflict {
		t.Errorf("second upload = %d, want 409", w.Code)
	}
	data, _ := os.ReadFile(filepath.Join(s.mediaRoot, "yacht.png"))
	if !bytes.Equal(data, pixelPNG) {
		t.Error("existing upload was overwritten")
	}
}

func TestUploadMedia_ContentMustMatchExtension(t *testing.T) {
	s := testEnv(t, "")
	cases := map[string][]byte{
		"fake.png":  []byte("fake-png-data"),
		"page.svg":  []byte("<html><script>alert(1)</script></html>"),
		"clip.mp4":  pixelPNG,
		"photo.jpg": pixelPNG,
	}
	for name, content := range cases {
		if w := uploadFile(t, s.router, name, content); w.Code != http.StatusBadRequest {
			t.Errorf("%s upload = %d, want 400", name, w.Code)
		}
		if _, err := os.Stat(filepath.Join(s.mediaRoot, name)); !os.IsNotExist(err) {
			t.Errorf("%s left on disk", name)
		}
	}
}

func TestServeMedia_NotFound(t *testing.T) {
	mh := NewMediaHandler(t.TempDir())
	r := chi.NewRouter()
	r.Get("/media/{filename}", mh.ServeFile)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/nope.png", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing media = %d, want 404", w.Code)
	}
}

func TestServeMedia_TraversalBlocked(t *testing.T) {
	mh := NewMediaHandler(t.TempDir())
	r := chi.NewRouter()
	r.Get("/media/{filename}", mh.ServeFile)

	for _, name := range []string{"../secret.md", "../../etc/passwd", ".hidden"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/"+name, nil))
		// chi may not route the traversal paths at all (404), or our handler rejects (400).
		if w.Code == http.StatusOK {
			t.Errorf("traversal %q should not return 200", name)
		}
	}
}

func TestUploadMedia_AuthProtected(t *testing.T) {
	s := testEnv(t, "secret")
	if w := uploadFile(t, s.router, "x.png", []byte("data")); w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
}

func TestUploadMedia_MissingFileField(t *testing.T) {
	s := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}
