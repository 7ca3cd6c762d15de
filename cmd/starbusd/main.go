// Command starbusd is the StarBus coordinator daemon: it serves the
// HTTP task-coordination API, the live state-change stream, and
// (optionally) an embedded NATS broadcaster.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/starbus/coordinator/internal/catalog"
	"github.com/starbus/coordinator/internal/execprofile"
	"github.com/starbus/coordinator/internal/instance"
	"github.com/starbus/coordinator/internal/quotes"
	"github.com/starbus/coordinator/internal/reposeed"
	"github.com/starbus/coordinator/internal/server"
	"github.com/starbus/coordinator/internal/starbus"
)

func main() {
	port := flag.Int("port", 7722, "HTTP server port")
	dbPath := flag.String("db", "data/starbus.db", "path to the SQLite database")
	workspaceRoot := flag.String("workspace-root", "", "artifact/workspace root (defaults to auto-discovery)")
	executorsPath := flag.String("executors", "configs/executors.yaml", "executor profile configuration")
	reposPath := flag.String("repos", "configs/repos.yaml", "repository catalog seed file")
	execRootDir := flag.String("exec-root", "data/workspaces", "root directory executor processes run from")
	execLogDir := flag.String("exec-log-dir", "data/executor-logs", "directory for executor process logs")
	embeddedNATS := flag.Bool("nats", false, "start an embedded NATS server and publish state changes to it")
	natsPort := flag.Int("nats-port", 4222, "embedded NATS port")
	natsDataDir := flag.String("nats-data-dir", "", "JetStream storage directory (enables a durable state-change stream when set)")
	desktopNotify := flag.Bool("desktop-notify", false, "raise a desktop toast when a task blocks on a human decision")
	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data directory: %v\n", err)
		os.Exit(1)
	}

	quotes.Init(".")
	fmt.Println(quotes.SpawnQuote())

	if !instance.IsPortAvailable(*port) {
		pid, _ := instance.GetProcessUsingPort(*port)
		fmt.Fprintf(os.Stderr, "port %d is already in use (pid %d)\n", *port, pid)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=busy_timeout(5000)", *dbPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	cat := catalog.New(db)
	if err := cat.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize catalog: %v\n", err)
		os.Exit(1)
	}

	if reposCfg, err := reposeed.Load(*reposPath); err == nil {
		if err := reposeed.Seed(reposCfg, cat); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to seed repo catalog: %v\n", err)
		}
	} else {
		fmt.Fprintf(os.Stderr, "no repo catalog at %s, starting with an empty one\n", *reposPath)
	}

	profiles, err := execprofile.Load(*executorsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no executor profile config at %s, using built-in defaults\n", *executorsPath)
		profiles = execprofile.Default()
	}
	executor := execprofile.NewProcessExecutor(profiles, cat, *execRootDir, *execLogDir)

	cfg := server.Config{
		Addr:         fmt.Sprintf(":%d", *port),
		DB:           db,
		Executor:     executor,
		EmbeddedNATS:  *embeddedNATS,
		NATSPort:      *natsPort,
		NATSDataDir:   *natsDataDir,
		DesktopNotify: *desktopNotify,
	}
	if *workspaceRoot != "" {
		root := *workspaceRoot
		cfg.WorkspaceRoot = func() (string, error) { return root, nil }
	}

	srv, err := server.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build server: %v\n", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Start() }()

	fmt.Printf("starbus coordinator starting on port %d\n", *port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	case <-sigCh:
		fmt.Println("shutting down (signal received)...")
	case <-srv.ShutdownChan:
		fmt.Println("shutting down (API request)...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
	}
	fmt.Println(quotes.ShutdownQuote())
}
