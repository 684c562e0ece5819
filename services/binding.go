package services

import (
	"log"
	"sync"

	"github.com/CoachForgeHQ/coachforge-go/models"
	"github.com/CoachForgeHQ/coachforge-go/session"
	"github.com/CoachForgeHQ/coachforge-go/store"
	"github.com/CoachForgeHQ/coachforge-go/utils"
)

// BindingConfig identifies the entity an editor instance is bound to and the
// commit target its edits will carry.
type BindingConfig struct {
	EntityType      models.EntityType
	EntityID        string
	WeekNumber      int
	DayIndex        int
	ViewContext     models.ViewContext
	ClientContextID string
	APIEndpoint     string
	HTTPMethod      string
}

// EditorBinding mirrors store state into a field editor's local editable
// state and re-registers on every local change. The day editor is the
// concrete instance; any entity editor binds the same way.
type EditorBinding struct {
	sess *session.Context

	mu            sync.Mutex
	cfg           BindingConfig
	source        map[string]any
	local         map[string]any
	hasLocal      bool
	lastResetSeen uint64
}

// NewEditorBinding attaches a binding for one entity. When the store already
// holds a pending record for this entity's key, local state hydrates from its
// pending data so navigating away and back never flickers to stale data;
// otherwise the server-confirmed source is used as-is.
func NewEditorBinding(sess *session.Context, cfg BindingConfig, source map[string]any) *EditorBinding {
	eb := &EditorBinding{
		sess:          sess,
		lastResetSeen: sess.ResetVersion(),
	}
	eb.hydrate(cfg, source)
	return eb
}

// hydrate assumes no concurrent use of eb yet, or eb.mu held by the caller.
func (eb *EditorBinding) hydrate(cfg BindingConfig, source map[string]any) {
	eb.cfg = cfg
	eb.source = clone(source)

	if pending, ok := eb.sess.Store().Get(cfg.EntityType, cfg.EntityID, cfg.ClientContextID); ok {
		eb.local = clone(pending.PendingData)
		eb.hasLocal = true
		return
	}
	eb.local = clone(source)
	eb.hasLocal = false
}

// Local returns a copy of the current editable state.
func (eb *EditorBinding) Local() map[string]any {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return clone(eb.local)
}

// HasLocalChanges reports whether local state differs from the
// server-confirmed source.
func (eb *EditorBinding) HasLocalChanges() bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return eb.hasLocal
}

// SetField applies one field edit and reconciles with the store.
func (eb *EditorBinding) SetField(field string, value any) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.local == nil {
		eb.local = make(map[string]any)
	}
	eb.local[field] = value
	eb.reconcileLocked(nil)
}

// SetLocal replaces the whole editable state and reconciles with the store.
// editedFields, when non-nil, is recorded on the pending change for
// finer-grained downstream logic.
func (eb *EditorBinding) SetLocal(data map[string]any, editedFields []string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.local = clone(data)
	eb.reconcileLocked(editedFields)
}

// reconcileLocked compares local state against the source by whole-record
// structural comparison. A difference registers the current local state as
// the pending data; equality with the original cancels the pending
// declaration even when one previously existed. eb.mu must be held.
func (eb *EditorBinding) reconcileLocked(editedFields []string) {
	key := store.ChangeKey(eb.cfg.EntityType, eb.cfg.EntityID, eb.cfg.ClientContextID)

	if utils.RecordsEqual(eb.local, eb.source) {
		eb.hasLocal = false
		eb.sess.DiscardChange(key)
		return
	}

	eb.hasLocal = true
	pc := &models.PendingChange{
		EntityType:      eb.cfg.EntityType,
		EntityID:        eb.cfg.EntityID,
		WeekNumber:      eb.cfg.WeekNumber,
		DayIndex:        eb.cfg.DayIndex,
		ViewContext:     eb.cfg.ViewContext,
		ClientContextID: eb.cfg.ClientContextID,
		OriginalData:    clone(eb.source),
		PendingData:     clone(eb.local),
		APIEndpoint:     eb.cfg.APIEndpoint,
		HTTPMethod:      eb.cfg.HTTPMethod,
		EditedFields:    editedFields,
	}
	if err := eb.sess.RegisterChange(pc); err != nil {
		log.Printf("Editor binding for %s failed to register change: %v", key, err)
	}
}

// ObserveReset checks the session's reset version against the last value this
// binding saw. On any change it discards local edits and re-hydrates from the
// server-confirmed data, regardless of whether this entity succeeded or
// failed in the most recent save. A non-nil freshSource replaces the bound
// source first (the caller refetched after the save). Reports whether a reset
// was applied.
func (eb *EditorBinding) ObserveReset(freshSource map[string]any) bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	version := eb.sess.ResetVersion()
	if version == eb.lastResetSeen {
		return false
	}
	eb.lastResetSeen = version

	if freshSource != nil {
		eb.source = clone(freshSource)
	}
	eb.local = clone(eb.source)
	eb.hasLocal = false
	return true
}

// Rebind points this binding at a different entity (e.g. navigating to a
// different day within the same editor instance). The previous entity's local
// state is not carried over; hydration re-runs for the new identity.
func (eb *EditorBinding) Rebind(cfg BindingConfig, source map[string]any) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.hydrate(cfg, source)
}

func clone(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
