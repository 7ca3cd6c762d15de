// Command starbusctl is a small operator CLI that talks directly to the
// StarBus SQLite database, for scripting and debugging without going
// through the HTTP API.
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/starbus/coordinator/internal/catalog"
	"github.com/starbus/coordinator/internal/docstore"
	"github.com/starbus/coordinator/internal/starbus"
)

func main() {
	dbPath := flag.String("db", "data/starbus.db", "path to the SQLite database")
	action := flag.String("action", "", "action to perform: get-task, transition, list-active")
	taskID := flag.String("task", "", "task ID")
	status := flag.String("status", "", "target status (for transition)")
	jsonOutput := flag.Bool("json", false, "output as JSON")
	flag.Parse()

	if *action == "" {
		fmt.Fprintln(os.Stderr, "Usage: starbusctl -db <path> -action <get-task|transition|list-active> [-task id] [-status STATUS] [-json]")
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=busy_timeout(5000)", *dbPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	docs := docstore.NewStore(db)
	if err := docs.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize document store: %v\n", err)
		os.Exit(1)
	}
	cat := catalog.New(db)
	if err := cat.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize catalog: %v\n", err)
		os.Exit(1)
	}
	engine := starbus.NewEngine(starbus.NewStore(docs), cat, noopExecutor{})

	switch *action {
	case "get-task":
		if *taskID == "" {
			fmt.Fprintln(os.Stderr, "-task is required for get-task")
			os.Exit(1)
		}
		state, err := engine.Store.GetTask(*taskID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "get-task failed: %v\n", err)
			os.Exit(1)
		}
		printResult(state, *jsonOutput)

	case "transition":
		if *taskID == "" || *status == "" {
			fmt.Fprintln(os.Stderr, "-task and -status are required for transition")
			os.Exit(1)
		}
		state, err := engine.TransitionState(starbus.TransitionRequest{TaskID: *taskID, Status: *status})
		if err != nil {
			fmt.Fprintf(os.Stderr, "transition failed: %v\n", err)
			os.Exit(1)
		}
		printResult(state, *jsonOutput)

	case "list-active":
		resp, err := engine.GetState("", true, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "list-active failed: %v\n", err)
			os.Exit(1)
		}
		printResult(resp.Tasks, *jsonOutput)

	default:
		fmt.Fprintf(os.Stderr, "unknown action: %s\n", *action)
		os.Exit(1)
	}
}

func printResult(v interface{}, asJSON bool) {
	if asJSON {
		json.NewEncoder(os.Stdout).Encode(v)
		return
	}
	fmt.Printf("%+v\n", v)
}

type noopExecutor struct{}

func (noopExecutor) Start(workspaceID, profile string) error {
	return fmt.Errorf("starbusctl does not support auto-start; use the coordinator's HTTP API")
}
