package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jayampathiw/task-escrow/clients"
	"github.com/jayampathiw/task-escrow/handlers"
	"github.com/jayampathiw/task-escrow/logging"
	"github.com/jayampathiw/task-escrow/middleware"
	"github.com/jayampathiw/task-escrow/repositories"
	"github.com/jayampathiw/task-escrow/services"
	"github.com/jayampathiw/task-escrow/utils"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	logging.InitLogger()

	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting Escrow Service...")
	if err := godotenv.Load(".env"); err != nil {
		logging.Logger.Warnf("Event ID: ENV_LOAD_WARNING, Description: No .env file loaded: %v", err)
	}

	mongoURI := os.Getenv("MONGO_URI")
	mongoDBName := os.Getenv("MONGO_DB_NAME")
	if mongoDBName == "" {
		mongoDBName = "escrow_db"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		logging.Logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: Database connection for MongoDB failed: %v", err)
	}
	defer mongoClient.Disconnect(ctx)

	if err := mongoClient.Ping(ctx, nil); err != nil {
		logging.Logger.Fatalf("Event ID: DB_PING_FAILED, Description: MongoDB connection ping error: %v", err)
	}
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB at %s.", mongoURI)

	taskRepo := repositories.NewMongoTaskRepo(mongoClient.Database(mongoDBName))

	eventRepo, err := repositories.NewEventRepo()
	if err != nil {
		logging.Logger.Fatalf("Event ID: EVENT_STORE_INIT_FAILED, Description: Failed to initialize event store: %v", err)
	}
	defer eventRepo.CloseSession()
	eventRepo.CreateTable()

	walletBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "WalletServiceCB",
		MaxRequests: 1,
		Timeout:     2 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})

	walletURL := os.Getenv("WALLET_SERVICE_URL")
	if walletURL == "" {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: WALLET_SERVICE_URL is not set in the environment variables.")
	}
	walletClient := clients.NewWalletClient(walletURL, utils.NewHTTPClient(), walletBreaker)

	taskService := services.NewTaskService(taskRepo, walletClient, eventRepo)
	taskHandler := handlers.NewTaskHandler(taskService)

	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Escrow service is running"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/tasks").Subrouter()
	api.Use(middleware.JWTAuthMiddleware)

	api.HandleFunc("", taskHandler.CreateTask).Methods(http.MethodPost)
	api.HandleFunc("/all", taskHandler.GetAllTasks).Methods(http.MethodGet)
	api.HandleFunc("/count", taskHandler.GetTaskCount).Methods(http.MethodGet)
	api.HandleFunc("/client", taskHandler.GetClientTasks).Methods(http.MethodGet)
	api.HandleFunc("/freelancer", taskHandler.GetFreelancerTasks).Methods(http.MethodGet)
	api.HandleFunc("/{taskID:[0-9]+}", taskHandler.GetTask).Methods(http.MethodGet)
	api.HandleFunc("/{taskID:[0-9]+}/events", taskHandler.GetTaskEvents).Methods(http.MethodGet)
	api.HandleFunc("/{taskID:[0-9]+}/accept", taskHandler.AcceptTask).Methods(http.MethodPost)
	api.HandleFunc("/{taskID:[0-9]+}/submit", taskHandler.SubmitTask).Methods(http.MethodPost)
	api.HandleFunc("/{taskID:[0-9]+}/approve", taskHandler.ApproveTask).Methods(http.MethodPost)
	api.HandleFunc("/{taskID:[0-9]+}/dispute", taskHandler.DisputeTask).Methods(http.MethodPost)
	api.HandleFunc("/{taskID:[0-9]+}/cancel", taskHandler.CancelTask).Methods(http.MethodPost)

	corsRouter := enableCORS(r)

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: SERVER_PORT is not set in the environment variables.")
	}

	serverAddress := fmt.Sprintf(":%s", serverPort)
	logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", serverAddress)

	if err := http.ListenAndServe(serverAddress, corsRouter); err != nil {
		logging.Logger.Fatalf("Event ID: SERVER_FATAL_ERROR, Description: Server failed to start: %v", err)
	}
}
