package services

import (
	"context"
	"sync"
	"time"

	"github.com/jayampathiw/task-escrow/logging"
	"github.com/jayampathiw/task-escrow/models"
	"github.com/jayampathiw/task-escrow/repositories"

	"github.com/google/uuid"
)

// PaymentClient is the value-transfer port. The ledger calls it exactly once
// per payout or refund, after every precondition has passed; a reported
// failure aborts the transition that requested the transfer.
type PaymentClient interface {
	Transfer(ctx context.Context, recipient string, amount int64) error
}

// EventStore receives one event per successful transition. Storing is
// best-effort: a store failure never rolls back a committed transition.
type EventStore interface {
	SaveTaskEvent(ctx context.Context, event models.TaskEvent) error
	GetEventsByTaskID(ctx context.Context, taskID uint64) ([]models.TaskEvent, error)
}

// TaskService owns the task-escrow lifecycle: which caller may trigger which
// transition, and what happens to the escrowed amount on each one. Mutating
// operations are serialized per task id so concurrent transitions on the
// same task cannot both observe the same prior status.
type TaskService struct {
	repo     repositories.TaskRepository
	payments PaymentClient
	events   EventStore
	now      func() time.Time

	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

func NewTaskService(repo repositories.TaskRepository, payments PaymentClient, events EventStore) *TaskService {
	return NewTaskServiceWithClock(repo, payments, events, time.Now)
}

func NewTaskServiceWithClock(repo repositories.TaskRepository, payments PaymentClient, events EventStore, now func() time.Time) *TaskService {
	return &TaskService{
		repo:     repo,
		payments: payments,
		events:   events,
		now:      now,
		locks:    make(map[uint64]*sync.Mutex),
	}
}

func (s *TaskService) lockTask(id uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// CreateTask escrows amount for the described work and returns the new task.
// The attached amount is held by the ledger until approval or cancellation.
func (s *TaskService) CreateTask(ctx context.Context, caller, description string, deadline time.Time, amount int64) (*models.Task, error) {
	if amount <= 0 {
		return nil, models.InvalidInputf("escrow amount must be positive, got %d", amount)
	}
	if !deadline.After(s.now()) {
		return nil, models.InvalidInputf("deadline must be in the future")
	}

	id, err := s.repo.NextTaskID(ctx)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:          id,
		Client:      caller,
		Description: description,
		Amount:      amount,
		Deadline:    deadline,
		Status:      models.StatusCreated,
		CreatedAt:   s.now(),
	}

	if err := s.repo.InsertTask(ctx, task); err != nil {
		return nil, err
	}

	logging.Logger.Infof("Event ID: TASK_CREATED, Description: Task %d created by %s, escrowed %d.", task.ID, caller, amount)
	s.publish(ctx, task, models.EventTaskCreated, caller)
	return task, nil
}

// AcceptTask binds the caller as the task's freelancer. The client may not
// accept their own task: escrow without an independent counterparty is
// pointless.
func (s *TaskService) AcceptTask(ctx context.Context, caller string, id uint64) (*models.Task, error) {
	lock := s.lockTask(id)
	lock.Lock()
	defer lock.Unlock()

	task, err := s.repo.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller == task.Client {
		return nil, models.Unauthorizedf("client cannot accept their own task")
	}
	if task.Status != models.StatusCreated {
		return nil, models.InvalidStatef("task %d is %s, expected %s", id, task.Status, models.StatusCreated)
	}

	task.Freelancer = caller
	task.Status = models.StatusAccepted
	if err := s.repo.UpdateTask(ctx, task, models.StatusCreated); err != nil {
		return nil, err
	}

	logging.Logger.Infof("Event ID: TASK_ACCEPTED, Description: Task %d accepted by %s.", id, caller)
	s.publish(ctx, task, models.EventTaskAccepted, caller)
	return task, nil
}

// SubmitTask records the deliverable link. Only the bound freelancer may
// submit, and only while the task is accepted.
func (s *TaskService) SubmitTask(ctx context.Context, caller string, id uint64, deliverableLink string) (*models.Task, error) {
	if deliverableLink == "" {
		return nil, models.InvalidInputf("deliverable link is required")
	}

	lock := s.lockTask(id)
	lock.Lock()
	defer lock.Unlock()

	task, err := s.repo.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != models.StatusAccepted {
		return nil, models.InvalidStatef("task %d is %s, expected %s", id, task.Status, models.StatusAccepted)
	}
	if caller != task.Freelancer {
		return nil, models.Unauthorizedf("only the task freelancer can submit work")
	}

	task.DeliverableLink = deliverableLink
	task.Status = models.StatusSubmitted
	if err := s.repo.UpdateTask(ctx, task, models.StatusAccepted); err != nil {
		return nil, err
	}

	logging.Logger.Infof("Event ID: TASK_SUBMITTED, Description: Task %d submitted by %s.", id, caller)
	s.publish(ctx, task, models.EventTaskSubmitted, caller)
	return task, nil
}

// ApproveTask pays the escrowed amount out to the freelancer and completes
// the task. Transfer and status change commit together: a transfer failure
// leaves the task submitted with the funds still held.
func (s *TaskService) ApproveTask(ctx context.Context, caller string, id uint64) (*models.Task, error) {
	lock := s.lockTask(id)
	lock.Lock()
	defer lock.Unlock()

	task, err := s.repo.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != models.StatusSubmitted {
		return nil, models.InvalidStatef("task %d is %s, expected %s", id, task.Status, models.StatusSubmitted)
	}
	if caller != task.Client {
		return nil, models.Unauthorizedf("only the task client can approve work")
	}

	if err := s.payments.Transfer(ctx, task.Freelancer, task.Amount); err != nil {
		return nil, err
	}

	task.Status = models.StatusCompleted
	if err := s.repo.UpdateTask(ctx, task, models.StatusSubmitted); err != nil {
		// Funds already moved; the record must not stay submitted.
		logging.Logger.Errorf("Event ID: TASK_COMPLETE_COMMIT_FAILED, Description: Task %d paid out but status update failed: %v", id, err)
		return nil, err
	}

	logging.Logger.Infof("Event ID: TASK_APPROVED, Description: Task %d approved, paid %d to %s.", id, task.Amount, task.Freelancer)
	s.publish(ctx, task, models.EventTaskApproved, caller)
	return task, nil
}

// DisputeTask flags submitted work. No funds move; the escrow stays held
// pending an external resolution mechanism.
func (s *TaskService) DisputeTask(ctx context.Context, caller string, id uint64) (*models.Task, error) {
	lock := s.lockTask(id)
	lock.Lock()
	defer lock.Unlock()

	task, err := s.repo.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != models.StatusSubmitted {
		return nil, models.InvalidStatef("task %d is %s, expected %s", id, task.Status, models.StatusSubmitted)
	}
	if caller != task.Client {
		return nil, models.Unauthorizedf("only the task client can dispute work")
	}

	task.Status = models.StatusDisputed
	if err := s.repo.UpdateTask(ctx, task, models.StatusSubmitted); err != nil {
		return nil, err
	}

	logging.Logger.Infof("Event ID: TASK_DISPUTED, Description: Task %d disputed by %s, escrow of %d stays held.", id, caller, task.Amount)
	s.publish(ctx, task, models.EventTaskDisputed, caller)
	return task, nil
}

// CancelTask refunds the escrowed amount to the client. Only possible while
// no freelancer has accepted. Refund and status change commit together.
func (s *TaskService) CancelTask(ctx context.Context, caller string, id uint64) (*models.Task, error) {
	lock := s.lockTask(id)
	lock.Lock()
	defer lock.Unlock()

	task, err := s.repo.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != models.StatusCreated {
		return nil, models.InvalidStatef("task %d is %s, expected %s", id, task.Status, models.StatusCreated)
	}
	if caller != task.Client {
		return nil, models.Unauthorizedf("only the task client can cancel the task")
	}

	if err := s.payments.Transfer(ctx, task.Client, task.Amount); err != nil {
		return nil, err
	}

	task.Status = models.StatusCancelled
	if err := s.repo.UpdateTask(ctx, task, models.StatusCreated); err != nil {
		logging.Logger.Errorf("Event ID: TASK_CANCEL_COMMIT_FAILED, Description: Task %d refunded but status update failed: %v", id, err)
		return nil, err
	}

	logging.Logger.Infof("Event ID: TASK_CANCELLED, Description: Task %d cancelled, refunded %d to %s.", id, task.Amount, caller)
	s.publish(ctx, task, models.EventTaskCancelled, caller)
	return task, nil
}

func (s *TaskService) GetTask(ctx context.Context, id uint64) (*models.Task, error) {
	return s.repo.GetTaskByID(ctx, id)
}

func (s *TaskService) GetAllTasks(ctx context.Context) ([]models.Task, error) {
	return s.repo.GetAllTasks(ctx)
}

func (s *TaskService) GetTasksByClient(ctx context.Context, client string) ([]models.Task, error) {
	return s.repo.GetTasksByClient(ctx, client)
}

func (s *TaskService) GetTasksByFreelancer(ctx context.Context, freelancer string) ([]models.Task, error) {
	return s.repo.GetTasksByFreelancer(ctx, freelancer)
}

func (s *TaskService) GetTaskCount(ctx context.Context) (uint64, error) {
	return s.repo.TaskCount(ctx)
}

func (s *TaskService) GetTaskEvents(ctx context.Context, id uint64) ([]models.TaskEvent, error) {
	if _, err := s.repo.GetTaskByID(ctx, id); err != nil {
		return nil, err
	}
	return s.events.GetEventsByTaskID(ctx, id)
}

func (s *TaskService) publish(ctx context.Context, task *models.Task, name, actor string) {
	event := models.TaskEvent{
		ID:        uuid.New().String(),
		TaskID:    task.ID,
		Name:      name,
		Status:    task.Status,
		Actor:     actor,
		CreatedAt: s.now(),
	}
	if err := s.events.SaveTaskEvent(ctx, event); err != nil {
		logging.Logger.Warnf("Event ID: EVENT_PUBLISH_FAILED, Description: Failed to publish %s for task %d: %v", name, task.ID, err)
	}
}
