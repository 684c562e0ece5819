package store

import (
	"log"
	"sync"

	"github.com/CoachForgeHQ/coachforge-go/models"
)

// PendingStore holds the uncommitted edits of a single editing session, keyed
// by composite change key. It keeps insertion order so the save pipeline sees
// each entity type's records in the order they were first declared.
//
// All public methods take the store mutex; none of them call each other while
// holding it.
type PendingStore struct {
	mu      sync.RWMutex
	changes map[string]*models.PendingChange
	order   []string
}

// NewPendingStore creates an empty store.
func NewPendingStore() *PendingStore {
	return &PendingStore{
		changes: make(map[string]*models.PendingChange),
	}
}

// Register inserts or wholesale-replaces the record at the change's composite
// key. A re-registration keeps the key's original position in insertion order.
func (ps *PendingStore) Register(pc *models.PendingChange) {
	key := KeyFor(pc)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.changes[key]; !exists {
		ps.order = append(ps.order, key)
	}
	ps.changes[key] = pc.Clone()
}

// Update merges partial data into an existing record's pending data. When
// editedFields is non-nil it replaces the tracked field list; otherwise the
// previous list is preserved. A missing key is a caller bug surfaced only in
// the log, never an error.
func (ps *PendingStore) Update(key string, partial map[string]any, editedFields []string) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	pc, exists := ps.changes[key]
	if !exists {
		log.Printf("pending store: update for unknown key %s ignored", key)
		return false
	}

	if pc.PendingData == nil {
		pc.PendingData = make(map[string]any, len(partial))
	}
	for k, v := range partial {
		pc.PendingData[k] = v
	}
	if editedFields != nil {
		pc.EditedFields = append([]string(nil), editedFields...)
	}
	return true
}

// Discard removes one record. Removing an absent key is a no-op.
func (ps *PendingStore) Discard(key string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.removeLocked(key)
}

// removeLocked assumes ps.mu is held.
func (ps *PendingStore) removeLocked(key string) {
	if _, exists := ps.changes[key]; !exists {
		return
	}
	delete(ps.changes, key)
	for i, k := range ps.order {
		if k == key {
			ps.order = append(ps.order[:i], ps.order[i+1:]...)
			break
		}
	}
}

// Clear drops every record.
func (ps *PendingStore) Clear() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.changes = make(map[string]*models.PendingChange)
	ps.order = nil
}

// Retain keeps only the records whose keys appear in keep and discards the
// rest. Used after a partially failed save to drop everything that committed.
func (ps *PendingStore) Retain(keep map[string]bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for key := range ps.changes {
		if !keep[key] {
			delete(ps.changes, key)
		}
	}
	kept := ps.order[:0]
	for _, key := range ps.order {
		if _, exists := ps.changes[key]; exists {
			kept = append(kept, key)
		}
	}
	ps.order = kept
}

// Has reports whether a pending change exists for the entity.
func (ps *PendingStore) Has(entityType models.EntityType, entityID, clientContextID string) bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	_, exists := ps.changes[ChangeKey(entityType, entityID, clientContextID)]
	return exists
}

// Get returns a copy of the pending change for the entity, if any. Editors use
// this to hydrate initial state with an already-pending edit before rendering.
func (ps *PendingStore) Get(entityType models.EntityType, entityID, clientContextID string) (*models.PendingChange, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	pc, exists := ps.changes[ChangeKey(entityType, entityID, clientContextID)]
	if !exists {
		return nil, false
	}
	return pc.Clone(), true
}

// Len returns the number of pending records.
func (ps *PendingStore) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.changes)
}

// Snapshot returns copies of every record in insertion order. The save
// pipeline works on a snapshot so in-flight commits never observe concurrent
// registrar calls.
func (ps *PendingStore) Snapshot() []*models.PendingChange {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	out := make([]*models.PendingChange, 0, len(ps.order))
	for _, key := range ps.order {
		if pc, exists := ps.changes[key]; exists {
			out = append(out, pc.Clone())
		}
	}
	return out
}
