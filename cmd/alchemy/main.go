package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/datealchemy/alchemy/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (optional, defaults to ~/.config/alchemy/config.toml)")
	prefsPath := flag.String("prefs", "", "preferences file path (optional)")
	envFile := flag.String("env", "", "dotenv file to load (optional, defaults to .env and .env.local)")
	start := flag.String("open", "", "screen to open first, e.g. /questions (optional)")
	pollSeconds := flag.Int("poll", 0, "approval re-check interval in seconds (optional, defaults to 30s)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: alchemy [flags] [diag]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		EnvFile:    *envFile,
		StartPath:  *start,
	}
	if poll := *pollSeconds; poll > 0 {
		opts.PollEvery = poll
	}

	switch cmd := flag.Arg(0); cmd {
	case "":
		if err := app.Run(ctx, opts); err != nil {
			fmt.Fprintf(os.Stderr, "alchemy: %v\n", err)
			return 1
		}
	case "diag":
		if err := app.Diag(ctx, opts, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "alchemy diag: %v\n", err)
			return 1
		}
	default:
		fmt.Fprintf(os.Stderr, "alchemy: unknown command %q\n", cmd)
		flag.Usage()
		return 2
	}
	return 0
}
