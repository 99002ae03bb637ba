package repositories

import (
	"context"
	"os"

	"github.com/jayampathiw/task-escrow/logging"
	"github.com/jayampathiw/task-escrow/models"

	"github.com/gocql/gocql"
)

// EventRepo stores one row per successful lifecycle transition in Cassandra,
// clustered per task id in transition order.
type EventRepo struct {
	session *gocql.Session
}

func NewEventRepo() (*EventRepo, error) {
	db := os.Getenv("CASS_DB")
	if db == "" {
		db = "127.0.0.1"
	}

	cluster := gocql.NewCluster(db)
	cluster.Keyspace = "system"
	session, err := cluster.CreateSession()
	if err != nil {
		logging.Logger.Errorf("Event ID: CASS_CONNECT_FAILED, Description: Failed to connect to Cassandra: %v", err)
		return nil, err
	}

	err = session.Query(
		`CREATE KEYSPACE IF NOT EXISTS escrow
         WITH replication = {
             'class': 'SimpleStrategy',
             'replication_factor': 1
         }`).Exec()
	if err != nil {
		logging.Logger.Errorf("Event ID: CASS_KEYSPACE_FAILED, Description: Failed to create keyspace: %v", err)
		return nil, err
	}
	session.Close()

	cluster.Keyspace = "escrow"
	cluster.Consistency = gocql.One
	session, err = cluster.CreateSession()
	if err != nil {
		logging.Logger.Errorf("Event ID: CASS_KEYSPACE_CONNECT_FAILED, Description: Failed to connect to escrow keyspace: %v", err)
		return nil, err
	}

	logging.Logger.Info("Event ID: CASS_CONNECTED, Description: Connected to Cassandra escrow keyspace.")
	return &EventRepo{session: session}, nil
}

func (er *EventRepo) CloseSession() {
	er.session.Close()
	logging.Logger.Info("Event ID: CASS_SESSION_CLOSED, Description: Cassandra session closed.")
}

func (er *EventRepo) CreateTable() {
	err := er.session.Query(
		`CREATE TABLE IF NOT EXISTS task_events (
			task_id BIGINT,
			created_at TIMESTAMP,
			id UUID,
			name TEXT,
			status TEXT,
			actor TEXT,
			PRIMARY KEY ((task_id), created_at, id)
		) WITH CLUSTERING ORDER BY (created_at ASC, id ASC)`).Exec()
	if err != nil {
		logging.Logger.Errorf("Event ID: CASS_TABLE_FAILED, Description: Failed to create task_events table: %v", err)
	} else {
		logging.Logger.Info("Event ID: CASS_TABLE_READY, Description: task_events table ready.")
	}
}

func (er *EventRepo) SaveTaskEvent(ctx context.Context, event models.TaskEvent) error {
	if event.ID == "" {
		event.ID = gocql.TimeUUID().String()
	}

	err := er.session.Query(
		`INSERT INTO task_events (task_id, created_at, id, name, status, actor)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		int64(event.TaskID), event.CreatedAt, event.ID, event.Name, string(event.Status), event.Actor,
	).WithContext(ctx).Exec()
	if err != nil {
		logging.Logger.Errorf("Event ID: EVENT_STORE_FAILED, Description: Failed to store event %s for task %d: %v", event.Name, event.TaskID, err)
		return err
	}
	return nil
}

func (er *EventRepo) GetEventsByTaskID(ctx context.Context, taskID uint64) ([]models.TaskEvent, error) {
	query := `SELECT id, task_id, name, status, actor, created_at
			  FROM task_events WHERE task_id = ?`

	iter := er.session.Query(query, int64(taskID)).WithContext(ctx).Iter()

	var events []models.TaskEvent
	var event models.TaskEvent
	var rowTaskID int64
	var status string
	for iter.Scan(&event.ID, &rowTaskID, &event.Name, &status, &event.Actor, &event.CreatedAt) {
		event.TaskID = uint64(rowTaskID)
		event.Status = models.TaskStatus(status)
		events = append(events, event)
	}

	if err := iter.Close(); err != nil {
		logging.Logger.Errorf("Event ID: EVENT_QUERY_FAILED, Description: Failed to retrieve events for task %d: %v", taskID, err)
		return nil, err
	}

	return events, nil
}
