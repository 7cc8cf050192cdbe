package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/skyops/dronectl/internal/action"
	"github.com/skyops/dronectl/internal/actuator"
	"github.com/skyops/dronectl/internal/batch"
	"github.com/skyops/dronectl/internal/events"
	"github.com/skyops/dronectl/internal/model"
	"github.com/skyops/dronectl/internal/yaml"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "batch":
		runBatch(os.Args[2:])
	case "actions":
		runActions(os.Args[2:])
	case "version":
		fmt.Printf("dronectl %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`dronectl - batch command scheduling and execution engine

usage:
  dronectl batch <file> [options]   execute a batch of parsed commands
  dronectl actions [options]        print the effective action table
  dronectl version                  print version

batch options:
  --config <path>       config file (default: dronectl.yaml if present)
  --mode <m>            sequential|parallel|optimized|priority_based
  --recovery <r>        stop_on_error|continue_on_error|retry_and_continue|smart_recovery
  --max-retries <n>     retry budget per command
  --out <path>          also write the result to a YAML file
  --json                print the result as JSON
  --quiet               suppress per-command progress lines

actions options:
  --catalog <path>      catalog override file`)
}

// batchFile is the YAML shape of a batch input file.
type batchFile struct {
	Commands []batchEntry `yaml:"commands"`
}

type batchEntry struct {
	Action            string         `yaml:"action"`
	Parameters        map[string]any `yaml:"parameters"`
	Confidence        float64        `yaml:"confidence"`
	MissingParameters []string       `yaml:"missing_parameters"`
	Suggestions       []string       `yaml:"suggestions"`
}

func runBatch(args []string) {
	if len(args) < 1 || strings.HasPrefix(args[0], "--") {
		fmt.Fprintln(os.Stderr, "usage: dronectl batch <file> [options]")
		os.Exit(1)
	}
	file := args[0]
	rest := args[1:]

	var configPath, mode, recovery, outPath string
	maxRetries := -1
	jsonOutput := false
	quiet := false

	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--config":
			i++
			configPath = requireValue(rest, i, "--config")
		case "--mode":
			i++
			mode = requireValue(rest, i, "--mode")
		case "--recovery":
			i++
			recovery = requireValue(rest, i, "--recovery")
		case "--max-retries":
			i++
			v := requireValue(rest, i, "--max-retries")
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				fmt.Fprintf(os.Stderr, "--max-retries: invalid value %q\n", v)
				os.Exit(1)
			}
			maxRetries = n
		case "--out":
			i++
			outPath = requireValue(rest, i, "--out")
		case "--json":
			jsonOutput = true
		case "--quiet":
			quiet = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", rest[i])
			os.Exit(1)
		}
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	bctx := cfg.Defaults.Context()
	if mode != "" {
		m, err := model.ParseExecutionMode(mode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "--mode: %v\n", err)
			os.Exit(1)
		}
		bctx.Mode = m
	}
	if recovery != "" {
		r, err := model.ParseErrorRecovery(recovery)
		if err != nil {
			fmt.Fprintf(os.Stderr, "--recovery: %v\n", err)
			os.Exit(1)
		}
		bctx.Recovery = r
	}
	if maxRetries >= 0 {
		bctx.MaxRetries = maxRetries
	}

	cmds, err := loadBatchFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load batch: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}
	logLevel := batch.ParseLogLevel(cfg.Logging.Level)

	catalog, catalogClose, err := buildCatalog(cfg.Catalog, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
		os.Exit(1)
	}
	if catalogClose != nil {
		defer func() { _ = catalogClose.Close() }()
	}

	invoker, err := buildInvoker(cfg.Actuator, catalog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "actuator: %v\n", err)
		os.Exit(1)
	}

	bus := events.NewBus(256)
	defer bus.Close()
	if !quiet {
		subscribeProgress(bus, len(cmds))
	}

	orch := batch.NewOrchestrator(catalog, invoker, logger, logLevel)
	orch.SetEventBus(bus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := orch.ProcessBatch(ctx, cmds, bctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "batch: %v\n", err)
		os.Exit(1)
	}

	if err := printResult(result, jsonOutput); err != nil {
		fmt.Fprintf(os.Stderr, "print result: %v\n", err)
		os.Exit(1)
	}
	if outPath != "" {
		if err := yaml.AtomicWrite(outPath, result); err != nil {
			fmt.Fprintf(os.Stderr, "write result: %v\n", err)
			os.Exit(1)
		}
	}

	if result.Summary.FailedCommands > 0 {
		os.Exit(2)
	}
}

func runActions(args []string) {
	var catalogPath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--catalog":
			i++
			catalogPath = requireValue(args, i, "--catalog")
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: dronectl actions [--catalog path]\n", args[i])
			os.Exit(1)
		}
	}

	cat, err := action.Load(catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-14s %9s %-10s %-24s %s\n", "ACTION", "DURATION", "PRIORITY", "REQUIRES", "CONFLICTS")
	for _, a := range cat.Actions() {
		meta, _ := cat.Lookup(a)
		fmt.Printf("%-14s %8gs %-10s %-24s %s\n",
			a, meta.EstimatedSec, meta.Priority, joinActions(meta.Requires), joinActions(meta.Conflicts))
	}
}

func joinActions(set map[action.Action]bool) string {
	if len(set) == 0 {
		return "-"
	}
	names := make([]string, 0, len(set))
	for a := range set {
		names = append(names, string(a))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func requireValue(args []string, i int, flag string) string {
	if i >= len(args) {
		fmt.Fprintf(os.Stderr, "%s requires a value\n", flag)
		os.Exit(1)
	}
	return args[i]
}

func loadConfig(path string) (model.Config, error) {
	var cfg model.Config
	if path == "" {
		if _, err := os.Stat("dronectl.yaml"); err == nil {
			path = "dronectl.yaml"
		}
	}
	if path != "" {
		if err := yaml.ReadStrict(path, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func loadBatchFile(path string) ([]model.ParsedCommand, error) {
	var file batchFile
	if err := yaml.ReadStrict(path, &file); err != nil {
		return nil, err
	}
	if len(file.Commands) == 0 {
		return nil, fmt.Errorf("%s: no commands", path)
	}

	cmds := make([]model.ParsedCommand, len(file.Commands))
	for i, entry := range file.Commands {
		cmds[i] = model.ParsedCommand{
			PrimaryIntent: model.Intent{
				Action:     entry.Action,
				Parameters: entry.Parameters,
				Confidence: entry.Confidence,
			},
			ConfidenceLevel:   model.ConfidenceFromScore(entry.Confidence),
			MissingParameters: entry.MissingParameters,
			Suggestions:       entry.Suggestions,
		}
	}
	return cmds, nil
}

func buildLogger(cfg model.LoggingConfig) (*log.Logger, io.Closer, error) {
	if cfg.File == "" {
		return log.New(os.Stderr, "", 0), nil, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return log.New(f, "", 0), f, nil
}

func buildCatalog(cfg model.CatalogConfig, logger *log.Logger) (action.Provider, io.Closer, error) {
	if cfg.Path == "" {
		return action.Default(), nil, nil
	}
	if cfg.Watch {
		w, err := action.NewWatcher(cfg.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return w, closerFunc(w.Close), nil
	}
	cat, err := action.Load(cfg.Path)
	return cat, nil, err
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func buildInvoker(cfg model.ActuatorConfig, cat action.Provider) (actuator.Invoker, error) {
	switch cfg.Kind {
	case "http":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("actuator kind %q requires an endpoint", cfg.Kind)
		}
		return actuator.NewClient(cfg.Endpoint), nil
	case "sim":
		return actuator.NewSimulator(cat.Catalog(), cfg.TimeScale), nil
	default:
		return nil, fmt.Errorf("unknown actuator kind %q", cfg.Kind)
	}
}

func subscribeProgress(bus *events.Bus, total int) {
	bus.Subscribe(events.EventCommandStarted, func(ev events.Event) {
		fmt.Fprintf(os.Stderr, "[%d/%d] %v started\n", ev.Index+1, total, ev.Data["action"])
	})
	bus.Subscribe(events.EventCommandRetrying, func(ev events.Event) {
		fmt.Fprintf(os.Stderr, "[%d/%d] retrying (attempt %v, %v)\n", ev.Index+1, total, ev.Data["attempt"], ev.Data["code"])
	})
	bus.Subscribe(events.EventCommandFinished, func(ev events.Event) {
		fmt.Fprintf(os.Stderr, "[%d/%d] %v\n", ev.Index+1, total, ev.Data["status"])
	})
}

func printResult(result *model.BatchResult, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	data, err := yamlv3.Marshal(result)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
