package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"dev/bravebird/ui-verification-go/pkg/browser"
	"dev/bravebird/ui-verification-go/pkg/database"
	"dev/bravebird/ui-verification-go/pkg/metrics"
	"dev/bravebird/ui-verification-go/pkg/temporal/activities"
	"dev/bravebird/ui-verification-go/pkg/temporal/workflows"
)

func main() {
	temporalHost := getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	screenshotDir := getEnvOrDefault("SCREENSHOT_DIR", "/tmp/screenshots")
	metricsAddr := getEnvOrDefault("METRICS_ADDR", ":9090")

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: temporalHost,
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	// Results are persisted only when a database is reachable
	var store activities.ResultStore
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		db, err := database.New(dsn)
		if err != nil {
			log.Printf("Warning: Failed to connect to database: %v", err)
		} else {
			defer db.Close()
			store = db
		}
	}

	acts := activities.NewActivities(store, screenshotDir)

	// Create worker. Each activity holds a whole browser, keep concurrency low.
	w := worker.New(c, workflows.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     2,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
		// Step heartbeats feed the live progress stream
		MaxHeartbeatThrottleInterval: time.Second,
	})

	// Register workflows
	w.RegisterWorkflow(workflows.VerificationWorkflow)
	w.RegisterWorkflow(workflows.CrossDriverVerificationWorkflow)

	// Register activities
	w.RegisterActivity(acts.RunVerificationActivity)
	w.RegisterActivity(acts.RecordRunResultActivity)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		log.Printf("Serving metrics on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()

	log.Printf("Starting Temporal worker on task queue: %s", workflows.TaskQueue)
	log.Printf("Temporal host: %s", temporalHost)
	log.Printf("Available drivers: %v", browser.Drivers())

	// Start worker
	err = w.Run(worker.InterruptCh())
	if err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
