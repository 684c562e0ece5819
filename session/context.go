// Package session provides per-editing-session context management.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/CoachForgeHQ/coachforge-go/models"
	"github.com/CoachForgeHQ/coachforge-go/store"
)

// ErrSaveInFlight is returned when a save is requested while another save for
// the same session has not finished.
var ErrSaveInFlight = errors.New("a save is already in progress for this session")

// ResetListener receives reset-version bumps so bound editors can be told to
// resynchronize with authoritative data.
type ResetListener func(sessionID string, version uint64)

// Context holds the mutable boundary state of one editing session: the
// program scope, the saving/error flag pair, the monotonic reset counter, and
// the session's pending-change store.
//
// It is an explicit, passed-around object rather than ambient global state, so
// concurrent sessions (multiple tabs, tests) never interfere.
type Context struct {
	SessionID string

	mu           sync.RWMutex
	programID    string
	isSaving     bool
	saveError    string
	resetVersion uint64
	lastActive   time.Time

	store   *store.PendingStore
	onReset ResetListener
}

// NewContext creates a session context with an empty store.
func NewContext(sessionID string) *Context {
	return &Context{
		SessionID:  sessionID,
		store:      store.NewPendingStore(),
		lastActive: time.Now().UTC(),
	}
}

// SetResetListener installs the listener notified on every reset-version bump.
func (sc *Context) SetResetListener(fn ResetListener) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.onReset = fn
}

// Store exposes the session's pending-change store.
func (sc *Context) Store() *store.PendingStore {
	return sc.store
}

// ProgramID returns the currently edited program id.
func (sc *Context) ProgramID() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.programID
}

// SetProgram switches the session's program scope. Any change, including from
// unset to set, unconditionally discards the entire pending-change store and
// clears the save error. The reset version is NOT bumped: a scope switch is
// not a save/discard event, and editors bound to the old program are being
// unmounted anyway.
func (sc *Context) SetProgram(programID string) {
	sc.mu.Lock()
	changed := sc.programID != programID
	sc.programID = programID
	if changed {
		sc.saveError = ""
	}
	sc.mu.Unlock()

	if changed {
		sc.store.Clear()
	}
}

// RegisterChange declares a pending edit. A new edit invalidates any stale
// save-error banner.
func (sc *Context) RegisterChange(pc *models.PendingChange) error {
	if err := pc.Validate(); err != nil {
		return err
	}
	sc.store.Register(pc)

	sc.mu.Lock()
	sc.saveError = ""
	sc.mu.Unlock()
	return nil
}

// UpdateChange merges partial data into an existing pending record.
func (sc *Context) UpdateChange(key string, partial map[string]any, editedFields []string) bool {
	return sc.store.Update(key, partial, editedFields)
}

// DiscardChange retracts one pending record.
func (sc *Context) DiscardChange(key string) {
	sc.store.Discard(key)
}

// DiscardAll retracts every pending record and bumps the reset version by
// exactly one, even when the store was already empty. It is the user-visible
// "undo everything" action and must produce the same resynchronization signal
// to bound editors as a successful save.
func (sc *Context) DiscardAll() {
	sc.store.Clear()
	sc.BumpResetVersion()
}

// ResetVersion returns the current reset counter.
func (sc *Context) ResetVersion() uint64 {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.resetVersion
}

// BumpResetVersion increments the reset counter and notifies the listener.
func (sc *Context) BumpResetVersion() {
	sc.mu.Lock()
	sc.resetVersion++
	version := sc.resetVersion
	listener := sc.onReset
	sc.mu.Unlock()

	if listener != nil {
		listener(sc.SessionID, version)
	}
}

// BeginSave marks the session as saving. It reports false when a save is
// already in flight; the second caller is rejected rather than left to
// overlap the first.
func (sc *Context) BeginSave() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.isSaving {
		return false
	}
	sc.isSaving = true
	return true
}

// EndSave clears the saving flag.
func (sc *Context) EndSave() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.isSaving = false
}

// IsSaving reports whether a save run is in flight. It is the only signal the
// presentation layer should gate a Save control's disabled state on.
func (sc *Context) IsSaving() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.isSaving
}

// SaveError returns the aggregate error summary of the last save, if any.
func (sc *Context) SaveError() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.saveError
}

// SetSaveError records the aggregate save-error summary for display.
func (sc *Context) SetSaveError(msg string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.saveError = msg
}

// HasUnsavedChanges reports whether any pending record exists.
func (sc *Context) HasUnsavedChanges() bool {
	return sc.store.Len() > 0
}

// UnsavedCount returns the number of pending records.
func (sc *Context) UnsavedCount() int {
	return sc.store.Len()
}

// GuardArmed reports whether the warn-before-navigating-away guard should be
// armed. It tracks store occupancy directly, so it disarms automatically once
// the store empties for any reason.
func (sc *Context) GuardArmed() bool {
	return sc.store.Len() > 0
}

// Touch records session activity for idle cleanup.
func (sc *Context) Touch() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.lastActive = time.Now().UTC()
}

// LastActive returns the time of the most recent request for this session.
func (sc *Context) LastActive() time.Time {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastActive
}
