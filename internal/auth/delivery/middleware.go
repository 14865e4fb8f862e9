package delivery

import (
	"net/http"
	"strings"

	"inbox-triage/internal/auth/domain"

	"github.com/gin-gonic/gin"
)

// ApproverKey is the gin context key holding the authenticated *domain.Approver.
const ApproverKey = "approver"

// TokenValidator checks a bearer token.
type TokenValidator interface {
	Validate(token string) (*domain.Approver, error)
}

func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		approver, err := tokens.Validate(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ApproverKey, approver)
		c.Next()
	}
}

// CurrentApprover returns the approver stored by AuthMiddleware.
func CurrentApprover(c *gin.Context) (*domain.Approver, bool) {
	v, ok := c.Get(ApproverKey)
	if !ok {
		return nil, false
	}
	approver, ok := v.(*domain.Approver)
	return approver, ok
}
