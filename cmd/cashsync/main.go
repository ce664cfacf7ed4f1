// Command cashsync turns payment notification emails into budget
// transactions.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ArionMiles/cashsync/pkg/config"
	"github.com/ArionMiles/cashsync/pkg/logging"
)

func main() {
	logger := logging.Setup(logging.FromEnv())

	if err := run(os.Args[1:], logger); err != nil {
		logger.Error("cashsync failed", "error", err)
		os.Exit(1)
	}
}

// run dispatches to a subcommand. Without one, or when the first argument
// is a flag, it processes the inbox once.
func run(args []string, logger *slog.Logger) error {
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "run":
		return runProcess(args, logger)
	case "setup":
		return runSetup(args, logger)
	case "status":
		return runStatus(args)
	case "classify":
		return runClassify(args, os.Stdout)
	case "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// newFlagSet returns a flag set carrying the shared -config flag.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigFile, "path to a JSON or YAML config file")
	return fs, configPath
}

func printUsage() {
	fmt.Println("cashsync - payment notifications to budget transactions")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  cashsync [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Process the inbox label once (default)")
	fmt.Println("  setup      Authorize Gmail access")
	fmt.Println("  status     Check configuration and authorization")
	fmt.Println("  classify   Classify a subject offline")
	fmt.Println()
	fmt.Println("Every command accepts -config <path>. Settings can also be set with")
	fmt.Printf("%s* environment variables, e.g. %sBUDGET_ID.\n", config.EnvPrefix, config.EnvPrefix)
}
