// redmite-watch is a terminal consumer of the sync core: it signs in,
// follows registry snapshots and renders the live device table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/config"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/core"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/logger"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/registry"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/version"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to JSON config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("redmite-watch", version.GetFullVersion())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	svc, err := core.New(cfg, logger.GetLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	svc.Start(ctx)

	username := os.Getenv("REDMITE_USERNAME")
	password := os.Getenv("REDMITE_PASSWORD")

	if username != "" {
		err = svc.SignIn(ctx, username, password)
	} else {
		err = svc.LoadSession(ctx)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "sign-in: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(svc, cfg), tea.WithAltScreen())

	svc.Subscribe(func(snap registry.Snapshot) {
		p.Send(snapshotMsg(snap))
	})

	svc.OnChannelDown(func(err error) {
		p.Send(channelDownMsg{err: err})
	})

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui: %v\n", err)
	}

	svc.Stop(ctx)
}
