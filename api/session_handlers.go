package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CoachForgeHQ/coachforge-go/config"
)

type createSessionRequest struct {
	ProgramID string `json:"programId"`
}

type setProgramRequest struct {
	ProgramID string `json:"programId"`
}

// CreateSessionHandler allocates a new editing session and, when a JWT secret
// is configured, issues the token that protects the edit endpoints.
func CreateSessionHandler(c *gin.Context) {
	var req createSessionRequest
	// Body is optional; a session can start without a program scope.
	_ = c.ShouldBindJSON(&req)

	sc, err := SessionManager.Create()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	if req.ProgramID != "" {
		sc.SetProgram(req.ProgramID)
	}

	resp := gin.H{
		"sessionId": sc.SessionID,
		"programId": sc.ProgramID(),
	}

	if config.JWTSecret != "" {
		token, err := GenerateSessionJWT(sc.SessionID)
		if err != nil {
			log.Printf("Token generation failed for session %s: %v", sc.SessionID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
			return
		}
		resp["token"] = token
	}

	c.JSON(http.StatusOK, resp)
}

// SetProgramHandler switches the session's program scope. Any change discards
// every pending edit.
func SetProgramHandler(c *gin.Context) {
	sc, err := getEditSession(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req setProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	sc.SetProgram(req.ProgramID)
	c.JSON(http.StatusOK, gin.H{
		"programId":    sc.ProgramID(),
		"unsavedCount": sc.UnsavedCount(),
	})
}

// StatusHandler reports the signals the presentation layer drives its UI
// affordances from: disabled save buttons, spinners, "N unsaved" badges, and
// the warn-before-leave guard.
func StatusHandler(c *gin.Context) {
	sc, err := getEditSession(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"programId":         sc.ProgramID(),
		"hasUnsavedChanges": sc.HasUnsavedChanges(),
		"unsavedCount":      sc.UnsavedCount(),
		"isSaving":          sc.IsSaving(),
		"saveError":         sc.SaveError(),
		"resetVersion":      sc.ResetVersion(),
		"warnBeforeLeave":   sc.GuardArmed(),
	})
}

// CloseSessionHandler drops a session outright. Pending edits die with it.
func CloseSessionHandler(c *gin.Context) {
	sc, err := getEditSession(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if sc.HasUnsavedChanges() {
		log.Printf("Closing session %s with %d unsaved change(s)", sc.SessionID, sc.UnsavedCount())
	}
	SessionManager.Remove(sc.SessionID)
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}
