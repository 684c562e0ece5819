package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CoachForgeHQ/coachforge-go/models"
	"github.com/CoachForgeHQ/coachforge-go/store"
)

type updateChangeRequest struct {
	EntityType      string         `json:"entityType"`
	EntityID        string         `json:"entityId"`
	ClientContextID string         `json:"clientContextId,omitempty"`
	PartialData     map[string]any `json:"partialData"`
	EditedFields    []string       `json:"editedFields,omitempty"`
}

// changeKeyFromQuery resolves the composite key named by the request's query
// parameters.
func changeKeyFromQuery(c *gin.Context) (models.EntityType, string, string, bool) {
	entityType, err := models.ParseEntityType(c.Query("entityType"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", "", "", false
	}
	entityID := c.Query("entityId")
	if entityID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entityId is required"})
		return "", "", "", false
	}
	return entityType, entityID, c.Query("clientContextId"), true
}

// RegisterChangeHandler declares a pending edit: this entity now differs from
// its saved state. Re-registering the same key replaces the record wholesale.
func RegisterChangeHandler(c *gin.Context) {
	sc, err := getEditSession(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var pc models.PendingChange
	if err := c.ShouldBindJSON(&pc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	if err := sc.RegisterChange(&pc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":          store.KeyFor(&pc),
		"unsavedCount": sc.UnsavedCount(),
	})
}

// UpdateChangeHandler merges partial data into an existing declaration. An
// unknown key is a no-op; the caller bug surfaces only in the server log.
func UpdateChangeHandler(c *gin.Context) {
	sc, err := getEditSession(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req updateChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	entityType, err := models.ParseEntityType(req.EntityType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := store.ChangeKey(entityType, req.EntityID, req.ClientContextID)
	applied := sc.UpdateChange(key, req.PartialData, req.EditedFields)

	c.JSON(http.StatusOK, gin.H{
		"key":          key,
		"applied":      applied,
		"unsavedCount": sc.UnsavedCount(),
	})
}

// GetChangeHandler returns the pending record for an entity, if any. Editors
// hydrate initial state from it before rendering.
func GetChangeHandler(c *gin.Context) {
	sc, err := getEditSession(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	entityType, entityID, contextID, ok := changeKeyFromQuery(c)
	if !ok {
		return
	}

	pc, exists := sc.Store().Get(entityType, entityID, contextID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending change"})
		return
	}
	c.JSON(http.StatusOK, pc)
}

// DiscardChangeHandler retracts one pending record.
func DiscardChangeHandler(c *gin.Context) {
	sc, err := getEditSession(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	entityType, entityID, contextID, ok := changeKeyFromQuery(c)
	if !ok {
		return
	}

	sc.DiscardChange(store.ChangeKey(entityType, entityID, contextID))
	c.JSON(http.StatusOK, gin.H{"unsavedCount": sc.UnsavedCount()})
}

// DiscardAllHandler is the user-visible "undo everything" action. It empties
// the store and broadcasts the same resynchronization signal a successful
// save does.
func DiscardAllHandler(c *gin.Context) {
	sc, err := getEditSession(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sc.DiscardAll()
	c.JSON(http.StatusOK, gin.H{
		"unsavedCount": sc.UnsavedCount(),
		"resetVersion": sc.ResetVersion(),
	})
}
