package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/anonchat/cli/internal/cli"
	"github.com/anonchat/cli/internal/config"
	"github.com/anonchat/cli/internal/version"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	args, err := parseFlags(cfg, os.Args[1:])
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logrus.SetLevel(level)

	if len(args) > 0 {
		switch args[0] {
		case "register":
			if len(args) < 2 {
				fmt.Println("Usage: anonchat register <nickname>")
				return nil
			}
			return cli.Run(cfg, cli.Mode{RegisterNickname: args[1]})
		case "login":
			if len(args) < 2 {
				fmt.Println("Usage: anonchat login <uid>")
				return nil
			}
			return cli.Run(cfg, cli.Mode{LoginUID: args[1]})
		case "qr":
			return cli.QRCommand(cfg)
		case "help", "--help", "-h":
			printUsage()
			return nil
		case "version", "--version", "-v":
			fmt.Printf("anonchat v%s\n", version.RichVersion())
			return nil
		default:
			return fmt.Errorf("unknown command %q (try: anonchat help)", args[0])
		}
	}

	return cli.Run(cfg, cli.Mode{})
}

func parseFlags(cfg *config.Config, args []string) ([]string, error) {
	fs := flag.NewFlagSet("anonchat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	serverURL := fs.String("server", "", "Chat server URL")
	logLevel := fs.String("log-level", "", "Log level (trace|debug|info|warn|error)")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *showHelp {
		printUsage()
		return nil, nil
	}

	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	return fs.Args(), nil
}

func printUsage() {
	fmt.Println(`anonchat - anonymous chat client

Usage:
  anonchat                      Start chatting with the saved identity
  anonchat register <nickname>  Create a new identity and start chatting
  anonchat login <uid>          Sign in with an explicit uid
  anonchat qr                   Print the local uid as a QR code
  anonchat help                 Show this help message
  anonchat version              Show version information

Environment Variables:
  ANONCHAT_SERVER_URL             Server URL
  ANONCHAT_HOME                   Identity directory (default: ~/.anonchat)
  ANONCHAT_MAX_RECONNECT_ATTEMPTS Reconnect attempt budget (default: 10)
  ANONCHAT_RECONNECT_BASE_DELAY   First reconnect delay (default: 1s)
  ANONCHAT_REQUEST_TIMEOUT        Per-attempt response timeout (default: 5s)
  ANONCHAT_MAX_REQUEST_RETRIES    Emissions per request (default: 3)
  ANONCHAT_LOG_LEVEL              Log level (default: info)

Flags:
  --server     Chat server URL
  --log-level  Log level (trace|debug|info|warn|error)

Examples:
  # Create an identity and start chatting
  anonchat register gopher

  # Chat against a local server
  anonchat --server http://localhost:3000`)
}
