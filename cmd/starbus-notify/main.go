// Command starbus-notify publishes a single task state-change message to
// an already-running NATS server, independent of the coordinator process.
// Useful for exercising the starbus.task.<id>.state subject from scripts
// or during manual testing.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	starbusnats "github.com/starbus/coordinator/internal/nats"
)

func main() {
	natsURL := flag.String("url", "nats://127.0.0.1:4222", "NATS server URL")
	taskID := flag.String("task", "", "task ID to announce")
	status := flag.String("status", "QUEUED", "status to announce")
	flag.Parse()

	if *taskID == "" {
		log.Fatal("-task is required")
	}

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}
	defer nc.Close()

	msg := starbusnats.StarbusStateMessage{
		TaskID:    *taskID,
		Status:    *status,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Fatalf("failed to marshal message: %v", err)
	}

	subject := fmt.Sprintf(starbusnats.SubjectStarbusTaskState, *taskID)
	if err := nc.Publish(subject, data); err != nil {
		log.Fatalf("failed to publish: %v", err)
	}
	nc.Flush()

	fmt.Printf("published %s status=%s to %s\n", *taskID, *status, subject)
}
