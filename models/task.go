package models

import "time"

type TaskStatus string

const (
	StatusCreated   TaskStatus = "created"
	StatusAccepted  TaskStatus = "accepted"
	StatusSubmitted TaskStatus = "submitted"
	StatusDisputed  TaskStatus = "disputed"
	StatusCompleted TaskStatus = "completed"
	StatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether no further transition is defined from s.
// Disputed is terminal here: resolution belongs to an external system.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusDisputed || s == StatusCompleted || s == StatusCancelled
}

// Task is one unit of work together with its escrowed amount. The amount is
// held by the ledger from creation until it is paid out to the freelancer
// (approve) or refunded to the client (cancel), and is disbursed at most once.
type Task struct {
	ID              uint64     `json:"id" bson:"_id"`
	Client          string     `json:"client" bson:"client"`
	Freelancer      string     `json:"freelancer,omitempty" bson:"freelancer,omitempty"`
	Description     string     `json:"description" bson:"description"`
	Amount          int64      `json:"amount" bson:"amount"`
	Deadline        time.Time  `json:"deadline" bson:"deadline"`
	Status          TaskStatus `json:"status" bson:"status"`
	DeliverableLink string     `json:"deliverableLink,omitempty" bson:"deliverableLink,omitempty"`
	CreatedAt       time.Time  `json:"createdAt" bson:"createdAt"`
}
