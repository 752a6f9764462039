// boardwatch mirrors one project board from a running API. It loads the
// board over REST, optionally moves a task the way a drag and drop would,
// then follows the websocket broadcast and logs the lanes on every event.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"teamboard/internal/board"
	"teamboard/internal/model"
	"teamboard/pkg/config"
	"teamboard/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		apiURL    string
		token     string
		projectID string
		moveTask  string
		toLane    string
		before    string
		once      bool
		verbose   bool
	)
	flags := pflag.NewFlagSet("boardwatch", pflag.ContinueOnError)
	flags.StringVar(&apiURL, "api", "http://localhost:5000", "API base URL")
	flags.StringVar(&token, "token", os.Getenv("TEAMBOARD_TOKEN"), "bearer token (default $TEAMBOARD_TOKEN)")
	flags.StringVarP(&projectID, "project", "p", "", "project id to watch")
	flags.StringVar(&moveTask, "move", "", "task id to move before watching")
	flags.StringVar(&toLane, "to", "", "target lane for --move: todo, in_progress or done")
	flags.StringVar(&before, "before", "", "drop --move onto this task instead of a lane")
	flags.BoolVar(&once, "once", false, "print the board and exit")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if token == "" || projectID == "" {
		return errors.New("--token and --project are required")
	}

	log := logger.NewLogger(config.LogConfig{Development: true, Level: levelFor(verbose)})
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := board.NewAPIClient(apiURL, token, 15*time.Second, log)
	store := board.NewStore(projectID)

	projects, err := client.Projects(ctx)
	if err != nil {
		return fmt.Errorf("load projects: %w", err)
	}
	store.LoadProjects(projects)
	tasks, err := client.Tasks(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	store.LoadTasks(tasks)
	printBoard(log, store, "loaded")

	if moveTask != "" {
		target, err := moveTarget(toLane, before)
		if err != nil {
			return err
		}
		if _, err := store.Move(ctx, client, moveTask, target); err != nil {
			return err
		}
		printBoard(log, store, "moved")
	}
	if once {
		return nil
	}

	wsURL, err := websocketURL(apiURL)
	if err != nil {
		return err
	}
	return board.Watch(ctx, wsURL, token, store, func(event string) {
		printBoard(log, store, event)
	}, log)
}

func levelFor(verbose bool) string {
	if verbose {
		return "debug"
	}
	return "info"
}

func moveTarget(lane, before string) (board.Target, error) {
	if before != "" {
		return board.OnTask(before), nil
	}
	status, err := model.ParseTaskStatus(lane)
	if err != nil {
		return board.Target{}, fmt.Errorf("--move needs --before or a valid --to lane: %w", err)
	}
	return board.Column(status), nil
}

func websocketURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parse --api: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func printBoard(log *zap.Logger, store *board.Store, reason string) {
	fields := []zap.Field{zap.String("reason", reason)}
	if p, ok := store.Project(store.ProjectID()); ok {
		fields = append(fields, zap.String("project", p.Name), zap.Int("progress", p.Progress), zap.String("status", string(p.Status)))
	}
	lanes := store.Lanes()
	for _, st := range model.TaskStatuses {
		titles := make([]string, 0, len(lanes[st]))
		for _, t := range lanes[st] {
			titles = append(titles, t.Title)
		}
		fields = append(fields, zap.Strings(string(st), titles))
	}
	log.Info("Board", fields...)
}
