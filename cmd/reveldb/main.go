package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/KevoDB/reveldb/pkg/telemetry"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".open"),
	readline.PcItem(".close"),
	readline.PcItem(".exit"),
	readline.PcItem(".stats"),
	readline.PcItem(".metrics"),
	readline.PcItem(".digest"),
	readline.PcItem(".sync"),
	readline.PcItem("PUT"),
	readline.PcItem("GET"),
	readline.PcItem("SCAN"),
)

const helpText = `
reveldb - a single-log key-value store with crash recovery.

Usage:
  reveldb [options] [database_path]  - Start with an optional database path

Commands:
  .help                   - Show this help message
  .open PATH              - Open a database at PATH (the directory must exist)
  .close                  - Close the current database
  .exit                   - Exit the program
  .stats                  - Show database statistics
  .metrics                - Show collected metrics in Prometheus text format
  .digest                 - Show the content digest of the table
  .sync                   - Flush the log to stable storage

  PUT key value           - Store a key-value pair (each at most 255 bytes)
  GET key                 - Retrieve a value by key
  SCAN                    - Scan all key-value pairs
  SCAN start              - Scan key-value pairs from start
  SCAN start end          - Scan key-value pairs in range [start, end)
`

// Options holds the command line configuration
type Options struct {
	DBPath       string
	SyncMode     string
	RecoveryMode string
	LogLevel     string
	Exporters    string
}

func main() {
	opts := parseFlags()

	telCfg := telemetry.DefaultConfig()
	telCfg.LoadFromEnv()
	if opts.Exporters != "" {
		telCfg.Exporters = strings.Split(opts.Exporters, ",")
	}
	tel, err := telemetry.New(telCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing telemetry: %s\n", err)
		os.Exit(1)
	}

	sh := newShell(os.Stdout, tel, opts)
	defer sh.shutdown()

	if opts.DBPath != "" {
		fmt.Printf("Opening database at %s\n", opts.DBPath)
		if err := sh.open(opts.DBPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %s\n", err)
			sh.shutdown()
			os.Exit(1)
		}
	}

	runInteractive(sh)
}

// parseFlags parses command line flags and returns the options
func parseFlags() Options {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "reveldb - a single-log key-value store\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: reveldb [options] [database_path]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), "\nFor more details, start reveldb and type .help\n")
	}

	syncMode := flag.String("sync", "", "Sync mode override: none, batch or immediate")
	recoveryMode := flag.String("recovery", "", "Recovery mode override: strict or truncate_tail")
	logLevel := flag.String("log-level", "", "Log level override: debug, info, warn or error")
	exporters := flag.String("telemetry", "", "Comma separated telemetry exporters: prometheus, stdout, otlp")

	flag.Parse()

	var dbPath string
	if flag.NArg() > 0 {
		dbPath = flag.Arg(0)
	}

	return Options{
		DBPath:       dbPath,
		SyncMode:     *syncMode,
		RecoveryMode: *recoveryMode,
		LogLevel:     *logLevel,
		Exporters:    *exporters,
	}
}

func runInteractive(sh *shell) {
	fmt.Println("reveldb version 0.1.0")
	fmt.Println("Enter .help for usage hints.")

	historyFile := filepath.Join(os.TempDir(), ".reveldb_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "reveldb> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		return
	}
	defer rl.Close()

	for {
		rl.SetPrompt(sh.prompt())

		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if readErr == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", readErr)
			continue
		}

		if !sh.execute(line) {
			return
		}
	}
}
