// Package api provides shared helper functions
package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/CoachForgeHQ/coachforge-go/config"
	"github.com/CoachForgeHQ/coachforge-go/services"
	"github.com/CoachForgeHQ/coachforge-go/session"
)

// Package-level wiring set once at startup.
var (
	SessionManager *session.Manager
	Orchestrator   *services.SaveOrchestrator
	Hub            *services.EditorHub
)

// getEditSession is a helper to extract the editing-session context from gin
// context.
func getEditSession(c *gin.Context) (*session.Context, error) {
	sc, exists := c.Get("editSession")
	if !exists {
		return nil, fmt.Errorf("no edit session context")
	}
	return sc.(*session.Context), nil
}

// GenerateSessionJWT creates a session token bound to a session id.
func GenerateSessionJWT(sessionID string) (string, error) {
	claims := jwt.MapClaims{
		"sessionId": sessionID,
		"type":      "edit_session",
		"iat":       time.Now().UTC().Unix(),
		"exp":       time.Now().UTC().Add(config.SessionTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JWTSecret))
}
