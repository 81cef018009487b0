package main

import (
	"database/sql"
	"time"

	"famline/internal/auth"
	"famline/internal/callsession"
	"famline/internal/callsvc"
	"famline/internal/httpapi"
	"famline/internal/mediahub"
	"famline/internal/rbac"
	"famline/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, db *sql.DB, rdb *redis.Client, calls *callsvc.Service, hub *mediahub.Hub) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		status := gin.H{"status": "ok"}
		code := 200
		if err := storage.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			status["postgres"] = err.Error()
			code = 503
		}
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			status["redis"] = err.Error()
			code = 503
		}
		if code != 200 {
			status["status"] = "degraded"
		}
		c.JSON(code, status)
	})

	// Uploaded recordings are served as-is; URLs come back from the upload
	// endpoint and are stored on the call's recording.
	r.Static("/recordings", h.RecordingsDir)

	// Media relay. The handler does its own participant check against the
	// live call, so it sits outside the JWT middleware; native websocket
	// clients cannot always attach Authorization headers.
	ws := mediahub.NewHandler(hub, calls)
	r.GET("/ws/calls/:group_id/:call_type/:call_id/:participant_id", ws.ServeWS)

	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(h.Auth))
	{
		for _, ct := range []callsession.CallType{callsession.TypePhone, callsession.TypeVideo} {
			group := v1.Group("/groups/:group_id")
			group.Use(rbac.RequireGroup())

			cr := group.Group("/"+string(ct)+"-calls",
				httpapi.WithCallType(ct),
				rbac.RequireAnyRole(rbac.RoleMember, rbac.RoleChild))
			{
				cr.POST("", h.StartCall)
				cr.GET("", h.ListCalls)
				cr.PUT("/:call_id/accept", h.AcceptCall)
				cr.PUT("/:call_id/reject", h.RejectCall)
				cr.PUT("/:call_id/join", h.JoinCall)
				cr.PUT("/:call_id/leave", h.LeaveCall)
				cr.PUT("/:call_id/end", h.EndCall)
				cr.POST("/:call_id/recording", h.UploadRecording)
				cr.PUT("/:call_id/hide-recording", rbac.RequireAnyRole(rbac.RoleAdmin), h.HideRecording)
			}

			history := group.Group("/"+string(ct)+"-call-history",
				httpapi.WithCallType(ct),
				rbac.RequireAnyRole(rbac.RoleMember, rbac.RoleChild))
			{
				history.GET("", h.CallHistory)
			}
		}
	}
}
