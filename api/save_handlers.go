package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CoachForgeHQ/coachforge-go/session"
)

// SaveAllHandler runs the three-phase save pipeline for the session's pending
// changes. A save already in flight yields 409; the caller retries after it
// settles.
func SaveAllHandler(c *gin.Context) {
	sc, err := getEditSession(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := Orchestrator.SaveAll(c.Request.Context(), sc)
	if err != nil {
		if errors.Is(err, session.ErrSaveInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
