// Package models defines the shared data structures for the edit coordinator.
package models

import "fmt"

// EntityType identifies which program collection an edit belongs to.
type EntityType string

const (
	EntityModule EntityType = "module"
	EntityWeek   EntityType = "week"
	EntityDay    EntityType = "day"
)

// ParseEntityType validates a wire-level entity type string.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityModule, EntityWeek, EntityDay:
		return EntityType(s), nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// ViewContext identifies which editing lens produced an edit.
type ViewContext string

const (
	ViewTemplate ViewContext = "template"
	ViewClient   ViewContext = "client"
	ViewCohort   ViewContext = "cohort"
)

// ParseViewContext validates a wire-level view context string.
func ParseViewContext(s string) (ViewContext, error) {
	switch ViewContext(s) {
	case ViewTemplate, ViewClient, ViewCohort:
		return ViewContext(s), nil
	}
	return "", fmt.Errorf("unknown view context %q", s)
}

// ValidateHTTPMethod restricts commit verbs to what the backend accepts.
func ValidateHTTPMethod(method string) error {
	switch method {
	case "PATCH", "POST", "PUT":
		return nil
	}
	return fmt.Errorf("unsupported HTTP method %q", method)
}

// PendingChange is one declared, uncommitted edit to a program entity.
// OriginalData and PendingData are free-form records mirroring the backend's
// document shape; the coordinator never interprets them beyond the week-level
// task template comparison.
type PendingChange struct {
	EntityType      EntityType     `json:"entityType"`
	EntityID        string         `json:"entityId"`
	WeekNumber      int            `json:"weekNumber,omitempty"`
	DayIndex        int            `json:"dayIndex,omitempty"`
	ViewContext     ViewContext    `json:"viewContext"`
	ClientContextID string         `json:"clientContextId,omitempty"`
	OriginalData    map[string]any `json:"originalData"`
	PendingData     map[string]any `json:"pendingData"`
	APIEndpoint     string         `json:"apiEndpoint"`
	HTTPMethod      string         `json:"httpMethod"`
	// EditedFields lists which fields actually changed. nil means
	// whole-entity replace.
	EditedFields []string `json:"editedFields,omitempty"`
}

// Validate checks the fields the coordinator depends on.
func (pc *PendingChange) Validate() error {
	if _, err := ParseEntityType(string(pc.EntityType)); err != nil {
		return err
	}
	if pc.EntityID == "" {
		return fmt.Errorf("entity id is required")
	}
	if _, err := ParseViewContext(string(pc.ViewContext)); err != nil {
		return err
	}
	if pc.APIEndpoint == "" {
		return fmt.Errorf("api endpoint is required")
	}
	return ValidateHTTPMethod(pc.HTTPMethod)
}

// Clone returns a copy safe to hand to another goroutine. The data maps are
// copied one level deep; nested values are shared.
func (pc *PendingChange) Clone() *PendingChange {
	dup := *pc
	dup.OriginalData = copyRecord(pc.OriginalData)
	dup.PendingData = copyRecord(pc.PendingData)
	if pc.EditedFields != nil {
		dup.EditedFields = append([]string(nil), pc.EditedFields...)
	}
	return &dup
}

func copyRecord(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
