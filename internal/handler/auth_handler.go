package handler

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/unicms/internal/db"
	"github.com/unicms/internal/service"
)

const currentUserContextKey = "__current_user"

// Login 处理用户登录请求：校验凭据并把用户 ID 写入会话。
func (a *API) Login(c *gin.Context) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &payload, "invalid login payload") {
		return
	}

	user, err := a.users.Authenticate(payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "invalid username or password")
			return
		}
		log.Error().Err(err).Str("op", "auth.login").Msg("login failed")
		respondError(c, http.StatusInternalServerError, "login failed")
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to save session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout 清除会话。
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to save session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the acting identity with its access graph.
func (a *API) Me(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "not signed in")
		return
	}

	full, err := a.users.Get(user.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": full})
}

// AuthRequired resolves the acting identity from the session. Identity
// always comes from here, never from client-supplied claims in bodies.
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		rawID := session.Get("user_id")
		userID, ok := rawID.(uint)
		if !ok {
			respondError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}

		var user db.User
		if err := a.db.First(&user, userID).Error; err != nil {
			respondError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}

		c.Set(currentUserContextKey, &user)
		c.Next()
	}
}

// RequireAccess short-circuits with 401 unless the acting identity
// passes the legacy admin flag or holds the named permission. Runs
// before any mutation logic.
func (a *API) RequireAccess(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			respondError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}

		allowed, err := a.access.HasPermission(user, permission)
		if err != nil {
			log.Error().Err(err).Str("op", "auth.gate").Str("permission", permission).
				Msg("permission check failed")
			respondError(c, http.StatusInternalServerError, "authorization check failed")
			c.Abort()
			return
		}
		if !allowed {
			respondError(c, http.StatusUnauthorized, "insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}

func currentUser(c *gin.Context) *db.User {
	value, exists := c.Get(currentUserContextKey)
	if !exists {
		return nil
	}
	user, ok := value.(*db.User)
	if !ok {
		return nil
	}
	return user
}
