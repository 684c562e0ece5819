// Package store provides the in-memory pending-change store for one editing
// session.
package store

import (
	"fmt"

	"github.com/CoachForgeHQ/coachforge-go/models"
)

// ChangeKey derives the composite identity key for a pending change. The same
// day index edited under different client/cohort lenses must never collide, so
// the optional context id is the only extra discriminator.
func ChangeKey(entityType models.EntityType, entityID, clientContextID string) string {
	if clientContextID != "" {
		return fmt.Sprintf("%s:%s:%s", entityType, entityID, clientContextID)
	}
	return fmt.Sprintf("%s:%s", entityType, entityID)
}

// KeyFor resolves the composite key of an existing change record.
func KeyFor(pc *models.PendingChange) string {
	return ChangeKey(pc.EntityType, pc.EntityID, pc.ClientContextID)
}
