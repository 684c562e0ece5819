package models

// TaskTemplateField is the week-level field whose change triggers server-side
// task redistribution on save.
const TaskTemplateField = "taskTemplate"

// Distribution flag names injected into week payloads when the task template
// changed.
const (
	RedistributeTasksFlag      = "redistributeTasks"
	OverwriteTaskInstancesFlag = "overwriteTaskInstances"
)

// SaveEntityError reports one entity that failed to commit.
type SaveEntityError struct {
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Error      string     `json:"error"`
}

// SaveResult is the outcome of one orchestration run. Success is true only
// when every attempted entity committed.
type SaveResult struct {
	Success    bool              `json:"success"`
	SavedCount int               `json:"savedCount"`
	Errors     []SaveEntityError `json:"errors"`
}
