package httpapi

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"famline/internal/auth"
	"famline/internal/callsession"
	"famline/internal/callsvc"
	"famline/internal/group"
	"famline/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Calls     *callsvc.Service
	Directory group.Directory

	// RecordingsDir is where multipart recording uploads are written.
	RecordingsDir string
}

const ctxCallType = "call_type"

// WithCallType pins the call type for a route subtree, so phone-calls and
// video-calls share one set of handlers.
func WithCallType(t callsession.CallType) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxCallType, t)
		c.Next()
	}
}

func callTypeFrom(c *gin.Context) callsession.CallType {
	if v, ok := c.Get(ctxCallType); ok {
		if t, ok := v.(callsession.CallType); ok {
			return t
		}
	}
	return callsession.TypePhone
}

// --- Auth ---

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login validates member credentials and issues a JWT token pair.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	m, err := h.Directory.FindByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err := auth.CheckPassword(m.PasswordHash, req.Password); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	pair, err := h.Auth.IssuePair(time.Now(), m.UserID, m.GroupID, m.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"member":        m,
	})
}

// --- Calls ---

type startCallRequest struct {
	// Invitees defaults to every other group member when empty.
	Invitees []string `json:"invitees"`
}

func (h Handlers) StartCall(c *gin.Context) {
	groupID, _ := auth.GroupID(c.Request.Context())
	userID, _ := auth.UserID(c.Request.Context())
	t := callTypeFrom(c)

	// An empty body means "invite everyone"; anything unparseable is an error.
	var req startCallRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	me, err := h.Directory.Member(c.Request.Context(), groupID, userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not a group member"})
		return
	}

	var invitees []callsession.Participant
	if len(req.Invitees) > 0 {
		for _, id := range req.Invitees {
			m, err := h.Directory.Member(c.Request.Context(), groupID, id)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown invitee " + id})
				return
			}
			invitees = append(invitees, m.Participant())
		}
	} else {
		members, err := h.Directory.Members(c.Request.Context(), groupID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "member lookup failed"})
			return
		}
		for _, m := range members {
			if m.UserID != userID {
				invitees = append(invitees, m.Participant())
			}
		}
	}

	sess, err := h.Calls.Start(c.Request.Context(), groupID, t, me.Participant(), invitees)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h Handlers) ListCalls(c *gin.Context) {
	groupID, _ := auth.GroupID(c.Request.Context())
	sessions, err := h.Calls.List(c.Request.Context(), groupID, callTypeFrom(c))
	if err != nil {
		h.serviceError(c, err)
		return
	}
	if sessions == nil {
		sessions = []*callsession.CallSession{}
	}
	c.JSON(http.StatusOK, gin.H{"calls": sessions})
}

func (h Handlers) AcceptCall(c *gin.Context) {
	h.participantAction(c, h.Calls.Accept)
}

func (h Handlers) RejectCall(c *gin.Context) {
	h.participantAction(c, h.Calls.Reject)
}

func (h Handlers) JoinCall(c *gin.Context) {
	h.participantAction(c, h.Calls.Join)
}

func (h Handlers) participantAction(c *gin.Context, op func(ctx context.Context, groupID string, t callsession.CallType, callID, participantID string) (*callsession.CallSession, error)) {
	groupID, _ := auth.GroupID(c.Request.Context())
	userID, _ := auth.UserID(c.Request.Context())

	sess, err := op(c.Request.Context(), groupID, callTypeFrom(c), c.Param("call_id"), userID)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h Handlers) LeaveCall(c *gin.Context) {
	groupID, _ := auth.GroupID(c.Request.Context())
	userID, _ := auth.UserID(c.Request.Context())

	res, err := h.Calls.Leave(c.Request.Context(), groupID, callTypeFrom(c), c.Param("call_id"), userID)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_ended": res.CallEnded, "call": res.Session})
}

func (h Handlers) EndCall(c *gin.Context) {
	groupID, _ := auth.GroupID(c.Request.Context())
	userID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())

	sess, err := h.Calls.End(c.Request.Context(), groupID, callTypeFrom(c), c.Param("call_id"), userID, role, c.ClientIP())
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// UploadRecording accepts the multipart recording artifact for an ended call.
// Field name: "recording".
func (h Handlers) UploadRecording(c *gin.Context) {
	groupID, _ := auth.GroupID(c.Request.Context())
	callID := c.Param("call_id")
	log := logger.FromGin(c)

	file, err := c.FormFile("recording")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "recording file required"})
		return
	}

	ext := filepath.Ext(file.Filename)
	if ext == "" {
		ext = ".wav"
	}
	name := callID + "-" + uuid.NewString()[:8] + ext
	dst := filepath.Join(h.RecordingsDir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		log.Error("recording save failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "recording save failed"})
		return
	}

	url := "/recordings/" + name
	if err := h.Calls.AttachRecording(c.Request.Context(), groupID, callTypeFrom(c), callID, url); err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// HideRecording is admin-only (enforced by rbac middleware on the route).
func (h Handlers) HideRecording(c *gin.Context) {
	groupID, _ := auth.GroupID(c.Request.Context())
	userID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())

	if err := h.Calls.HideRecording(c.Request.Context(), groupID, c.Param("call_id"), userID, role, c.ClientIP()); err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hidden": true})
}

func (h Handlers) CallHistory(c *gin.Context) {
	groupID, _ := auth.GroupID(c.Request.Context())
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	sessions, err := h.Calls.History(c.Request.Context(), groupID, callTypeFrom(c), limit)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	if sessions == nil {
		sessions = []*callsession.CallSession{}
	}
	c.JSON(http.StatusOK, gin.H{"calls": sessions})
}

// serviceError translates callsvc errors into HTTP statuses. Unknown errors
// stay generic; internals do not leak to clients.
func (h Handlers) serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, callsvc.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, callsvc.ErrNotParticipant):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not a call participant"})
	case errors.Is(err, callsvc.ErrNotInitiator):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "only the initiator may end the call"})
	case errors.Is(err, callsvc.ErrCallTerminal):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already ended"})
	case errors.Is(err, callsvc.ErrTooManyCalls):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "group call limit reached"})
	case errors.Is(err, callsvc.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	default:
		logger.FromGin(c).Error("call service error", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
