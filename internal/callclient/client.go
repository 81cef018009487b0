// Package callclient is the typed HTTP client for the famline call API.
// It is the only way the on-device call stack talks to the backend.
package callclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"famline/internal/callsession"
	"famline/internal/group"
)

var (
	ErrNotFound     = errors.New("callclient: not found")
	ErrUnauthorized = errors.New("callclient: unauthorized")
	ErrForbidden    = errors.New("callclient: forbidden")
	ErrConflict     = errors.New("callclient: conflict")
)

// Client calls the REST API on behalf of one authenticated member.
// Safe for concurrent use after Login (the token is set once).
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithToken skips Login and uses a pre-issued access token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// LoginResult carries the issued tokens and the caller's own member record.
type LoginResult struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	Member       group.Member `json:"member"`
}

// Login authenticates and stores the access token for subsequent calls.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, err
	}
	var res LoginResult
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", bytes.NewReader(body), "application/json", &res); err != nil {
		return nil, err
	}
	c.token = res.AccessToken
	return &res, nil
}

func (c *Client) callsPath(groupID string, t callsession.CallType) string {
	return fmt.Sprintf("/v1/groups/%s/%s-calls", groupID, t)
}

// FetchActiveCalls returns the group's live calls of the given type.
func (c *Client) FetchActiveCalls(ctx context.Context, groupID string, t callsession.CallType) ([]callsession.CallSession, error) {
	var res struct {
		Calls []callsession.CallSession `json:"calls"`
	}
	if err := c.do(ctx, http.MethodGet, c.callsPath(groupID, t), nil, "", &res); err != nil {
		return nil, err
	}
	return res.Calls, nil
}

// StartCall rings the given invitees, or the whole group when none are named.
func (c *Client) StartCall(ctx context.Context, groupID string, t callsession.CallType, invitees []string) (*callsession.CallSession, error) {
	var body io.Reader
	if len(invitees) > 0 {
		b, err := json.Marshal(map[string][]string{"invitees": invitees})
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	var sess callsession.CallSession
	if err := c.do(ctx, http.MethodPost, c.callsPath(groupID, t), body, "application/json", &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) callAction(ctx context.Context, groupID string, t callsession.CallType, callID, action string) (*callsession.CallSession, error) {
	var sess callsession.CallSession
	path := fmt.Sprintf("%s/%s/%s", c.callsPath(groupID, t), callID, action)
	if err := c.do(ctx, http.MethodPut, path, nil, "", &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) AcceptCall(ctx context.Context, groupID string, t callsession.CallType, callID string) (*callsession.CallSession, error) {
	return c.callAction(ctx, groupID, t, callID, "accept")
}

func (c *Client) RejectCall(ctx context.Context, groupID string, t callsession.CallType, callID string) (*callsession.CallSession, error) {
	return c.callAction(ctx, groupID, t, callID, "reject")
}

func (c *Client) JoinCall(ctx context.Context, groupID string, t callsession.CallType, callID string) (*callsession.CallSession, error) {
	return c.callAction(ctx, groupID, t, callID, "join")
}

// EndCall terminates the call for every participant.
func (c *Client) EndCall(ctx context.Context, groupID string, t callsession.CallType, callID string) (*callsession.CallSession, error) {
	return c.callAction(ctx, groupID, t, callID, "end")
}

// LeaveResult reports whether the caller's departure ended the whole call.
type LeaveResult struct {
	CallEnded bool                     `json:"call_ended"`
	Call      *callsession.CallSession `json:"call"`
}

// LeaveCall removes the caller from the call.
func (c *Client) LeaveCall(ctx context.Context, groupID string, t callsession.CallType, callID string) (*LeaveResult, error) {
	var res LeaveResult
	path := fmt.Sprintf("%s/%s/leave", c.callsPath(groupID, t), callID)
	if err := c.do(ctx, http.MethodPut, path, nil, "", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UploadRecording posts the finished recording as a multipart file and
// returns the URL the server stored it under. Not retried on failure.
func (c *Client) UploadRecording(ctx context.Context, groupID string, t callsession.CallType, callID, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("recording", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var res struct {
		URL string `json:"url"`
	}
	path := fmt.Sprintf("%s/%s/recording", c.callsPath(groupID, t), callID)
	if err := c.do(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), &res); err != nil {
		return "", err
	}
	return res.URL, nil
}

// HideRecording hides the call's recording from the group. One-way.
func (c *Client) HideRecording(ctx context.Context, groupID string, t callsession.CallType, callID string) error {
	path := fmt.Sprintf("%s/%s/hide-recording", c.callsPath(groupID, t), callID)
	return c.do(ctx, http.MethodPut, path, nil, "", nil)
}

// CallHistory returns the group's most recent ended calls.
func (c *Client) CallHistory(ctx context.Context, groupID string, t callsession.CallType, limit int) ([]callsession.CallSession, error) {
	var res struct {
		Calls []callsession.CallSession `json:"calls"`
	}
	path := fmt.Sprintf("/v1/groups/%s/%s-call-history?limit=%d", groupID, t, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, "", &res); err != nil {
		return nil, err
	}
	return res.Calls, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("callclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(method, path, resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("callclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	var apiErr struct {
		Error string `json:"error"`
	}
	msg := resp.Status
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr); err == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusForbidden:
		sentinel = ErrForbidden
	case http.StatusConflict:
		sentinel = ErrConflict
	default:
		return fmt.Errorf("callclient: %s %s: %s", method, path, msg)
	}
	return fmt.Errorf("%w: %s %s: %s", sentinel, method, path, msg)
}
