// Command migrate applies the embedded database migrations.
//
//	migrate up | down | steps N | version
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/your-org/regime-switch-bot/db/schema"
	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/pkg/logger"
)

type command struct {
	name  string
	steps int
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, fmt.Errorf("missing command: up, down, steps N or version")
	}
	c := command{name: args[0]}
	switch c.name {
	case "up", "down", "version":
		if len(args) != 1 {
			return command{}, fmt.Errorf("%s takes no arguments", c.name)
		}
	case "steps":
		if len(args) != 2 {
			return command{}, fmt.Errorf("steps takes exactly one argument")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n == 0 {
			return command{}, fmt.Errorf("invalid step count %q", args[1])
		}
		c.steps = n
	default:
		return command{}, fmt.Errorf("unknown command %q", c.name)
	}
	return c, nil
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	flag.Parse()

	cmd, err := parseCommand(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	dsn := cfg.Database.DSN()
	switch cmd.name {
	case "up":
		err = schema.Up(dsn)
	case "down":
		err = schema.Down(dsn)
	case "steps":
		err = schema.Steps(dsn, cmd.steps)
	case "version":
		var v uint
		var dirty bool
		v, dirty, err = schema.Version(dsn)
		if err == nil {
			fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		}
	}
	if err != nil {
		logger.Fatalf("Migration %s failed: %v", cmd.name, err)
	}
	if cmd.name != "version" {
		logger.Infof("Migration %s completed.", cmd.name)
	}
}
