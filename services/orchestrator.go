// Package services provides the save-orchestration and editor-binding logic
// for the program editor.
package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/CoachForgeHQ/coachforge-go/backend"
	"github.com/CoachForgeHQ/coachforge-go/models"
	"github.com/CoachForgeHQ/coachforge-go/session"
	"github.com/CoachForgeHQ/coachforge-go/store"
	"github.com/CoachForgeHQ/coachforge-go/utils"
)

// SaveStateNotifier is told when a session enters or leaves the saving state,
// so connected editors can drive spinners without polling.
type SaveStateNotifier interface {
	SaveStateChanged(sessionID string, saving bool, saveError string)
}

// phasePolicy describes how one entity type's records are dispatched within
// their phase and how each record's outgoing payload is built.
type phasePolicy struct {
	// concurrent phases dispatch every record at once and settle positionally;
	// sequential phases issue request N+1 only after request N has settled.
	concurrent bool
	payload    func(pc *models.PendingChange) map[string]any
}

// phaseOrder fixes the hard barriers of the pipeline: modules fully settle
// before weeks begin, and weeks fully drain (attempted, not succeeded) before
// days begin. Day-level display can depend on week-level structural state.
var phaseOrder = []models.EntityType{models.EntityModule, models.EntityWeek, models.EntityDay}

// phasePolicies is the dispatch table keyed by entity type. New entity types
// slot in here without touching the orchestration loop.
var phasePolicies = map[models.EntityType]phasePolicy{
	models.EntityModule: {concurrent: true, payload: replacePayload},
	// Weeks run one at a time so two weeks' server-side task-distribution
	// side effects never race each other.
	models.EntityWeek: {concurrent: false, payload: weekPayload},
	models.EntityDay:  {concurrent: true, payload: replacePayload},
}

// SaveOrchestrator drives the three-phase commit pipeline against the
// persistence backend.
type SaveOrchestrator struct {
	committer backend.Committer
	notifier  SaveStateNotifier
}

// NewSaveOrchestrator creates an orchestrator over the given transport.
func NewSaveOrchestrator(committer backend.Committer) *SaveOrchestrator {
	return &SaveOrchestrator{committer: committer}
}

// SetNotifier installs an optional save-state notifier.
func (so *SaveOrchestrator) SetNotifier(n SaveStateNotifier) {
	so.notifier = n
}

// SaveAll drains the session's pending-change store through the pipeline and
// returns a structured result. A second call while a save is in flight is
// rejected with session.ErrSaveInFlight rather than left to overlap.
func (so *SaveOrchestrator) SaveAll(ctx context.Context, sess *session.Context) (*models.SaveResult, error) {
	if !sess.BeginSave() {
		return nil, session.ErrSaveInFlight
	}
	// EndSave must run before the final notification so a client that
	// refetches status on the event never sees a stale saving flag.
	defer func() {
		sess.EndSave()
		if so.notifier != nil {
			so.notifier.SaveStateChanged(sess.SessionID, false, sess.SaveError())
		}
	}()

	if so.notifier != nil {
		so.notifier.SaveStateChanged(sess.SessionID, true, "")
	}

	snapshot := sess.Store().Snapshot()
	if len(snapshot) == 0 {
		return &models.SaveResult{Success: true, SavedCount: 0, Errors: []models.SaveEntityError{}}, nil
	}

	groups := partition(snapshot)

	result := &models.SaveResult{Errors: []models.SaveEntityError{}}
	failedKeys := make(map[string]bool)

	for _, entityType := range phaseOrder {
		records := groups[entityType]
		if len(records) == 0 {
			continue
		}

		policy := phasePolicies[entityType]
		log.Printf("Save session %s: phase %s, %d record(s), concurrent=%t",
			sess.SessionID, entityType, len(records), policy.concurrent)

		outcomes := so.runPhase(ctx, records, policy)

		// Outcomes correspond to records by position, never by response
		// content.
		for i, err := range outcomes {
			if err == nil {
				result.SavedCount++
				continue
			}
			msg := err.Error()
			if msg == "" {
				msg = "Unknown error"
			}
			result.Errors = append(result.Errors, models.SaveEntityError{
				EntityType: records[i].EntityType,
				EntityID:   records[i].EntityID,
				Error:      msg,
			})
			failedKeys[store.KeyFor(records[i])] = true
		}
	}

	result.Success = len(result.Errors) == 0

	if result.Success {
		// Every bound editor must snap to its newly-saved authoritative data.
		sess.Store().Clear()
		sess.SetSaveError("")
		sess.BumpResetVersion()
		log.Printf("Save session %s: committed %d record(s)", sess.SessionID, result.SavedCount)
	} else {
		// Committed records leave the store even though siblings failed; the
		// reset version stays put so failed editors keep their local edits.
		sess.Store().Retain(failedKeys)
		sess.SetSaveError(fmt.Sprintf("Failed to save %d item(s)", len(result.Errors)))
		log.Printf("Save session %s: %d committed, %d failed",
			sess.SessionID, result.SavedCount, len(result.Errors))
	}

	return result, nil
}

// runPhase settles every record in the phase and returns one outcome per
// record, index-aligned with the dispatch list.
func (so *SaveOrchestrator) runPhase(ctx context.Context, records []*models.PendingChange, policy phasePolicy) []error {
	outcomes := make([]error, len(records))

	if policy.concurrent {
		var wg sync.WaitGroup
		for i, pc := range records {
			wg.Add(1)
			go func(i int, pc *models.PendingChange) {
				defer wg.Done()
				outcomes[i] = so.committer.Commit(ctx, pc, policy.payload(pc))
			}(i, pc)
		}
		wg.Wait()
		return outcomes
	}

	for i, pc := range records {
		// A failure is recorded and does not halt later records.
		outcomes[i] = so.committer.Commit(ctx, pc, policy.payload(pc))
	}
	return outcomes
}

// partition splits a snapshot by entity type, preserving each group's
// relative insertion order.
func partition(snapshot []*models.PendingChange) map[models.EntityType][]*models.PendingChange {
	groups := make(map[models.EntityType][]*models.PendingChange)
	for _, pc := range snapshot {
		groups[pc.EntityType] = append(groups[pc.EntityType], pc)
	}
	return groups
}

// replacePayload sends the pending data as-is.
func replacePayload(pc *models.PendingChange) map[string]any {
	return pc.PendingData
}

// weekPayload attaches the task-distribution flags when and only when the
// week-level task template actually changed. The stored pending data is never
// mutated; flags ride on a copy.
func weekPayload(pc *models.PendingChange) map[string]any {
	var origTemplate, pendTemplate any
	if pc.OriginalData != nil {
		origTemplate = pc.OriginalData[models.TaskTemplateField]
	}
	if pc.PendingData != nil {
		pendTemplate = pc.PendingData[models.TaskTemplateField]
	}

	if utils.ValuesEqual(origTemplate, pendTemplate) {
		return pc.PendingData
	}

	payload := make(map[string]any, len(pc.PendingData)+2)
	for k, v := range pc.PendingData {
		payload[k] = v
	}
	payload[models.RedistributeTasksFlag] = true
	payload[models.OverwriteTaskInstancesFlag] = true
	return payload
}
