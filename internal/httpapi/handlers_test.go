package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"famline/internal/auth"
	"famline/internal/callsession"
	"famline/internal/callstore"
	"famline/internal/callsvc"
	"famline/internal/config"
	"famline/internal/group"
	"famline/internal/rbac"

	"github.com/gin-gonic/gin"
)

func seedDirectory(t *testing.T) *group.MemoryDirectory {
	t.Helper()
	hash, err := auth.HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return group.NewMemoryDirectory(
		group.Member{UserID: "alice", GroupID: "g1", Username: "alice", DisplayName: "Alice", Role: rbac.RoleAdmin, PasswordHash: hash},
		group.Member{UserID: "bob", GroupID: "g1", Username: "bob", DisplayName: "Bob", Role: rbac.RoleMember, PasswordHash: hash},
		group.Member{UserID: "carol", GroupID: "g1", Username: "carol", DisplayName: "Carol", Role: rbac.RoleMember, PasswordHash: hash},
	)
}

// testIdentity injects the identity named by request headers, standing in for
// the JWT middleware.
func testIdentity(dir group.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetHeader("X-Test-User")
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		m, err := dir.Member(c.Request.Context(), "g1", uid)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		ctx := auth.WithIdentity(c.Request.Context(), m.UserID, m.GroupID, m.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := seedDirectory(t)
	mgr, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	h := Handlers{
		Auth:          mgr,
		Calls:         callsvc.New(callstore.NewMemoryLive(), callstore.NewMemoryHistory(), callsvc.Options{}),
		Directory:     dir,
		RecordingsDir: t.TempDir(),
	}

	r := gin.New()
	r.POST("/v1/auth/login", h.Login)

	v1 := r.Group("/v1", testIdentity(dir))
	for _, ct := range []callsession.CallType{callsession.TypePhone, callsession.TypeVideo} {
		calls := v1.Group("/groups/:group_id/"+string(ct)+"-calls",
			WithCallType(ct), rbac.RequireGroup(), rbac.RequireAnyRole(rbac.RoleMember, rbac.RoleChild))
		calls.POST("", h.StartCall)
		calls.GET("", h.ListCalls)
		calls.PUT("/:call_id/accept", h.AcceptCall)
		calls.PUT("/:call_id/reject", h.RejectCall)
		calls.PUT("/:call_id/join", h.JoinCall)
		calls.PUT("/:call_id/leave", h.LeaveCall)
		calls.PUT("/:call_id/end", h.EndCall)
		calls.POST("/:call_id/recording", h.UploadRecording)
		calls.PUT("/:call_id/hide-recording", rbac.RequireAnyRole(rbac.RoleAdmin), h.HideRecording)
	}
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, user string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLogin_IssuesTokens(t *testing.T) {
	r := newTestRouter(t)

	body, _ := json.Marshal(map[string]string{"username": "bob", "password": "correct horse battery"})
	w := do(t, r, http.MethodPost, "/v1/auth/login", "", body, "application/json")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("expected token pair")
	}

	body, _ = json.Marshal(map[string]string{"username": "bob", "password": "wrong"})
	if w := do(t, r, http.MethodPost, "/v1/auth/login", "", body, "application/json"); w.Code != 401 {
		t.Fatalf("expected 401 for bad password, got %d", w.Code)
	}
}

func startPhoneCall(t *testing.T, r *gin.Engine) callsession.CallSession {
	t.Helper()
	w := do(t, r, http.MethodPost, "/v1/groups/g1/phone-calls", "alice", nil, "")
	if w.Code != 201 {
		t.Fatalf("start: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var sess callsession.CallSession
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return sess
}

func TestCallLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t)
	sess := startPhoneCall(t, r)

	// The new call shows up in the group's live list.
	w := do(t, r, http.MethodGet, "/v1/groups/g1/phone-calls", "bob", nil, "")
	if w.Code != 200 {
		t.Fatalf("list: %d", w.Code)
	}
	var list struct {
		Calls []callsession.CallSession `json:"calls"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Calls) != 1 || list.Calls[0].Status != callsession.StatusRinging {
		t.Fatalf("expected one ringing call, got %+v", list.Calls)
	}

	// Bob joins; the call goes active.
	w = do(t, r, http.MethodPut, "/v1/groups/g1/phone-calls/"+sess.CallID+"/join", "bob", nil, "")
	if w.Code != 200 {
		t.Fatalf("join: %d: %s", w.Code, w.Body.String())
	}
	var joined callsession.CallSession
	_ = json.Unmarshal(w.Body.Bytes(), &joined)
	if joined.Status != callsession.StatusActive || joined.ConnectedAt == nil {
		t.Fatalf("expected active with connected_at, got %+v", joined)
	}

	// Bob leaves; only Alice remains joined, so the call ends.
	w = do(t, r, http.MethodPut, "/v1/groups/g1/phone-calls/"+sess.CallID+"/leave", "bob", nil, "")
	if w.Code != 200 {
		t.Fatalf("leave: %d: %s", w.Code, w.Body.String())
	}
	var leave struct {
		CallEnded bool                     `json:"call_ended"`
		Call      *callsession.CallSession `json:"call"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &leave); err != nil {
		t.Fatalf("decode leave: %v", err)
	}
	if !leave.CallEnded || leave.Call.Status != callsession.StatusEnded {
		t.Fatalf("expected call_ended=true ended, got %+v", leave)
	}

	// Ending an archived call reports not found.
	w = do(t, r, http.MethodPut, "/v1/groups/g1/phone-calls/"+sess.CallID+"/end", "alice", nil, "")
	if w.Code != 404 {
		t.Fatalf("end after archive: expected 404, got %d", w.Code)
	}
}

func TestUploadAndHideRecording(t *testing.T) {
	r := newTestRouter(t)
	sess := startPhoneCall(t, r)

	do(t, r, http.MethodPut, "/v1/groups/g1/phone-calls/"+sess.CallID+"/join", "bob", nil, "")
	w := do(t, r, http.MethodPut, "/v1/groups/g1/phone-calls/"+sess.CallID+"/end", "alice", nil, "")
	if w.Code != 200 {
		t.Fatalf("end: %d: %s", w.Code, w.Body.String())
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("recording", "call.wav")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write([]byte("RIFFfake-wav-bytes")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = mw.Close()

	w = do(t, r, http.MethodPost, "/v1/groups/g1/phone-calls/"+sess.CallID+"/recording", "alice", buf.Bytes(), mw.FormDataContentType())
	if w.Code != 200 {
		t.Fatalf("upload: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var up struct {
		URL string `json:"url"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &up)
	if up.URL == "" {
		t.Fatalf("expected recording url")
	}

	// Members cannot hide recordings.
	if w := do(t, r, http.MethodPut, "/v1/groups/g1/phone-calls/"+sess.CallID+"/hide-recording", "bob", nil, ""); w.Code != 403 {
		t.Fatalf("member hide: expected 403, got %d", w.Code)
	}
	// Admins can, once and one-way.
	if w := do(t, r, http.MethodPut, "/v1/groups/g1/phone-calls/"+sess.CallID+"/hide-recording", "alice", nil, ""); w.Code != 200 {
		t.Fatalf("admin hide: expected 200, got %d", w.Code)
	}
}
