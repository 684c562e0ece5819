package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoachForgeHQ/coachforge-go/models"
	"github.com/CoachForgeHQ/coachforge-go/store"
)

func newWeekChange(id string) *models.PendingChange {
	return &models.PendingChange{
		EntityType:   models.EntityWeek,
		EntityID:     id,
		WeekNumber:   2,
		ViewContext:  models.ViewTemplate,
		OriginalData: map[string]any{"focus": "base"},
		PendingData:  map[string]any{"focus": "intensity"},
		APIEndpoint:  "/programs/p1/weeks/" + id,
		HTTPMethod:   "PATCH",
	}
}

func TestRegisterChangeClearsSaveError(t *testing.T) {
	t.Parallel()
	sc := NewContext("s1")
	sc.SetSaveError("Failed to save 2 item(s)")

	require.NoError(t, sc.RegisterChange(newWeekChange("w1")))

	assert.Empty(t, sc.SaveError(), "a new edit invalidates a stale error banner")
	assert.Equal(t, 1, sc.UnsavedCount())
}

func TestRegisterChangeRejectsInvalid(t *testing.T) {
	t.Parallel()
	sc := NewContext("s1")

	pc := newWeekChange("w1")
	pc.HTTPMethod = "DELETE"
	assert.Error(t, sc.RegisterChange(pc))

	pc = newWeekChange("w1")
	pc.EntityType = "program"
	assert.Error(t, sc.RegisterChange(pc))

	assert.Equal(t, 0, sc.UnsavedCount())
}

func TestDiscardAllBumpsResetVersionExactlyOnce(t *testing.T) {
	t.Parallel()
	sc := NewContext("s1")
	sc.RegisterChange(newWeekChange("w1"))
	sc.RegisterChange(newWeekChange("w2"))

	before := sc.ResetVersion()
	sc.DiscardAll()

	assert.Equal(t, 0, sc.UnsavedCount())
	assert.Equal(t, before+1, sc.ResetVersion())
}

func TestDiscardAllOnEmptyStoreStillBumps(t *testing.T) {
	t.Parallel()
	sc := NewContext("s1")

	before := sc.ResetVersion()
	sc.DiscardAll()

	assert.Equal(t, before+1, sc.ResetVersion())
}

func TestSetProgramClearsStoreWithoutResetBump(t *testing.T) {
	t.Parallel()
	sc := NewContext("s1")
	sc.SetProgram("prog-a")
	sc.RegisterChange(newWeekChange("w1"))
	sc.SetSaveError("Failed to save 1 item(s)")

	before := sc.ResetVersion()
	sc.SetProgram("prog-b")

	assert.Equal(t, 0, sc.UnsavedCount())
	assert.Empty(t, sc.SaveError())
	assert.Equal(t, before, sc.ResetVersion(), "a scope switch is not a save/discard event")
}

func TestSetProgramFromUnsetClears(t *testing.T) {
	t.Parallel()
	sc := NewContext("s1")
	sc.RegisterChange(newWeekChange("w1"))

	sc.SetProgram("prog-a")

	assert.Equal(t, 0, sc.UnsavedCount())
}

func TestSetProgramSameValueKeepsStore(t *testing.T) {
	t.Parallel()
	sc := NewContext("s1")
	sc.SetProgram("prog-a")
	sc.RegisterChange(newWeekChange("w1"))

	sc.SetProgram("prog-a")

	assert.Equal(t, 1, sc.UnsavedCount())
}

func TestGuardTracksStoreOccupancy(t *testing.T) {
	t.Parallel()
	sc := NewContext("s1")
	assert.False(t, sc.GuardArmed())

	sc.RegisterChange(newWeekChange("w1"))
	assert.True(t, sc.GuardArmed())

	sc.DiscardChange(store.ChangeKey(models.EntityWeek, "w1", ""))
	assert.False(t, sc.GuardArmed(), "guard disarms once the store empties for any reason")
}

func TestBeginSaveRejectsOverlap(t *testing.T) {
	t.Parallel()
	sc := NewContext("s1")

	require.True(t, sc.BeginSave())
	assert.False(t, sc.BeginSave())
	assert.True(t, sc.IsSaving())

	sc.EndSave()
	assert.False(t, sc.IsSaving())
	assert.True(t, sc.BeginSave())
}

func TestResetListenerReceivesBumps(t *testing.T) {
	t.Parallel()
	sc := NewContext("s1")

	var gotSession string
	var gotVersion uint64
	sc.SetResetListener(func(sessionID string, version uint64) {
		gotSession = sessionID
		gotVersion = version
	})

	sc.DiscardAll()

	assert.Equal(t, "s1", gotSession)
	assert.Equal(t, uint64(1), gotVersion)
}

func TestManagerSessionIsolation(t *testing.T) {
	t.Parallel()
	m := NewManager()

	a, err := m.Create()
	require.NoError(t, err)
	b, err := m.Create()
	require.NoError(t, err)
	require.NotEqual(t, a.SessionID, b.SessionID)

	a.RegisterChange(newWeekChange("w1"))

	assert.Equal(t, 1, a.UnsavedCount())
	assert.Equal(t, 0, b.UnsavedCount(), "sessions must not interfere")

	got, ok := m.Get(a.SessionID)
	require.True(t, ok)
	assert.Same(t, a, got)

	m.Remove(a.SessionID)
	_, ok = m.Get(a.SessionID)
	assert.False(t, ok)
}
