package rbac

import (
	"net/http"

	"famline/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireGroup enforces the group-isolation invariant: group_id must exist in
// context and, when the route carries a :group_id param, it must match the
// caller's own group. Membership details beyond that belong to the service layer.
func RequireGroup() gin.HandlerFunc {
	return func(c *gin.Context) {
		gid, err := auth.GroupID(c.Request.Context())
		if err != nil || gid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "group_id required"})
			return
		}
		if p := c.Param("group_id"); p != "" && p != gid {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// Rules:
// - admin bypasses all checks
// - child is a restricted role and is denied unless explicitly allowed
// - group isolation is enforced via RequireGroup (use it in the chain)
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		if IsAdmin(role) {
			c.Next()
			return
		}

		if IsRestrictedRole(role) {
			if _, ok := allowedSet[role]; !ok {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}

		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
