package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jayampathiw/task-escrow/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TaskRepository is the persistence port of the task ledger.
type TaskRepository interface {
	NextTaskID(ctx context.Context) (uint64, error)
	InsertTask(ctx context.Context, task *models.Task) error
	GetTaskByID(ctx context.Context, id uint64) (*models.Task, error)
	GetAllTasks(ctx context.Context) ([]models.Task, error)
	GetTasksByClient(ctx context.Context, client string) ([]models.Task, error)
	GetTasksByFreelancer(ctx context.Context, freelancer string) ([]models.Task, error)
	TaskCount(ctx context.Context) (uint64, error)
	// UpdateTask persists the mutable fields of task, but only while the
	// stored record still has status prevStatus. A concurrent transition
	// that got there first surfaces as ErrInvalidState.
	UpdateTask(ctx context.Context, task *models.Task, prevStatus models.TaskStatus) error
}

const taskCounterID = "tasks"

type MongoTaskRepo struct {
	tasks    *mongo.Collection
	counters *mongo.Collection
}

func NewMongoTaskRepo(db *mongo.Database) *MongoTaskRepo {
	return &MongoTaskRepo{
		tasks:    db.Collection("tasks"),
		counters: db.Collection("counters"),
	}
}

// NextTaskID atomically increments the task counter and returns the new
// value. Ids start at 1 and are never reused; the counter is bumped before
// the task record exists, so a failed insert leaves a gap rather than a
// duplicate.
func (r *MongoTaskRepo) NextTaskID(ctx context.Context) (uint64, error) {
	filter := bson.M{"_id": taskCounterID}
	update := bson.M{"$inc": bson.M{"seq": int64(1)}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	if err := r.counters.FindOneAndUpdate(ctx, filter, update, opts).Decode(&counter); err != nil {
		return 0, fmt.Errorf("failed to allocate task id: %v", err)
	}
	return uint64(counter.Seq), nil
}

func (r *MongoTaskRepo) InsertTask(ctx context.Context, task *models.Task) error {
	if _, err := r.tasks.InsertOne(ctx, task); err != nil {
		return fmt.Errorf("failed to insert task %d: %v", task.ID, err)
	}
	return nil
}

func (r *MongoTaskRepo) GetTaskByID(ctx context.Context, id uint64) (*models.Task, error) {
	var task models.Task
	err := r.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: id %d", models.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve task %d: %v", id, err)
	}
	return &task, nil
}

func (r *MongoTaskRepo) GetAllTasks(ctx context.Context) ([]models.Task, error) {
	return r.findTasks(ctx, bson.M{})
}

func (r *MongoTaskRepo) GetTasksByClient(ctx context.Context, client string) ([]models.Task, error) {
	return r.findTasks(ctx, bson.M{"client": client})
}

func (r *MongoTaskRepo) GetTasksByFreelancer(ctx context.Context, freelancer string) ([]models.Task, error) {
	return r.findTasks(ctx, bson.M{"freelancer": freelancer})
}

func (r *MongoTaskRepo) findTasks(ctx context.Context, filter bson.M) ([]models.Task, error) {
	opts := options.Find().SetSort(bson.M{"_id": 1})
	cursor, err := r.tasks.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tasks: %v", err)
	}
	defer cursor.Close(ctx)

	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %v", err)
	}
	return tasks, nil
}

// TaskCount returns the running count of tasks ever created, which equals
// the highest issued id.
func (r *MongoTaskRepo) TaskCount(ctx context.Context) (uint64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOne(ctx, bson.M{"_id": taskCounterID}).Decode(&counter)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read task counter: %v", err)
	}
	return uint64(counter.Seq), nil
}

func (r *MongoTaskRepo) UpdateTask(ctx context.Context, task *models.Task, prevStatus models.TaskStatus) error {
	filter := bson.M{"_id": task.ID, "status": prevStatus}
	update := bson.M{"$set": bson.M{
		"status":          task.Status,
		"freelancer":      task.Freelancer,
		"deliverableLink": task.DeliverableLink,
	}}

	result, err := r.tasks.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update task %d: %v", task.ID, err)
	}
	if result.MatchedCount == 0 {
		// Either the task is gone or another transition committed first.
		if _, err := r.GetTaskByID(ctx, task.ID); err != nil {
			return err
		}
		return models.InvalidStatef("task %d is no longer %s", task.ID, prevStatus)
	}
	return nil
}
