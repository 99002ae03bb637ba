package models

import "time"

// Event names, one per lifecycle transition.
const (
	EventTaskCreated   = "TaskCreated"
	EventTaskAccepted  = "TaskAccepted"
	EventTaskSubmitted = "TaskSubmitted"
	EventTaskApproved  = "TaskApproved"
	EventTaskDisputed  = "TaskDisputed"
	EventTaskCancelled = "TaskCancelled"
)

// TaskEvent records one successful lifecycle transition for external
// consumers (presentation and indexing layers).
type TaskEvent struct {
	ID        string     `cassandra:"id" json:"id"`
	TaskID    uint64     `cassandra:"task_id" json:"taskId"`
	Name      string     `cassandra:"name" json:"name"`
	Status    TaskStatus `cassandra:"status" json:"status"`
	Actor     string     `cassandra:"actor" json:"actor"`
	CreatedAt time.Time  `cassandra:"created_at" json:"createdAt"`
}
