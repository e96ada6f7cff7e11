// Command loomctl is an operator shell that works against a local mirror of
// the maintenance data and keeps working while the server is unreachable.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"

	"loom-maintenance-backend/internal/client"
	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/store"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logs.Logger.Fatalf("failed to load configuration: %v", err)
	}
	logs.Init(logs.Options{Level: cfg.LogLevel})

	local, err := store.NewFileStore(cfg.CacheDir, 1)
	if err != nil {
		logs.Logger.Fatalf("failed to open local cache: %v", err)
	}
	api := client.New(cfg.ServerURL, nil)
	api.SetHealthTimeout(cfg.HealthTimeout)
	mgr := client.NewManager(api, client.Options{
		PollInterval: cfg.PollInterval,
		Local:        local,
		PendingFile:  filepath.Join(cfg.CacheDir, "pending.json"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		logs.Logger.Fatalf("failed to load data: %v", err)
	}
	go mgr.Run(ctx)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "loom> ",
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		logs.Logger.Fatalf("failed to initialize readline: %v", err)
	}
	defer rl.Close()

	sh := newShell(mgr, rl.Stdout())
	mgr.OnChange(func(k client.ChangeKind) {
		if k == client.Pulled {
			sh.printf("(data refreshed from %s)\n", api.BaseURL())
			rl.Refresh()
		}
	})
	fmt.Fprintf(rl.Stdout(), "connected to %s (%s). Type 'help' for commands.\n", api.BaseURL(), mgr.State())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		if err := sh.exec(ctx, parseArgs(line)); err != nil {
			if errors.Is(err, errQuit) {
				return
			}
			sh.printf("error: %v\n", err)
		}
	}
}
