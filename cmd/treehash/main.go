package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/treehash/internal/config"
	"github.com/bamsammich/treehash/internal/engine"
	"github.com/bamsammich/treehash/internal/event"
	"github.com/bamsammich/treehash/internal/filter"
	"github.com/bamsammich/treehash/internal/manifest"
	"github.com/bamsammich/treehash/internal/stats"
	"github.com/bamsammich/treehash/internal/transport"
	"github.com/bamsammich/treehash/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// filterFlag is a custom pflag.Value that preserves CLI ordering of
// --exclude and --include rules by appending to a shared filter.Chain.
type filterFlag struct {
	chain   *filter.Chain
	include bool
}

func (*filterFlag) String() string { return "" }
func (*filterFlag) Type() string   { return "string" }

func (f *filterFlag) Set(val string) error {
	if f.include {
		return f.chain.AddInclude(val)
	}
	return f.chain.AddExclude(val)
}

type options struct {
	workers        int
	excludeDirs    []string
	policy         string
	algorithm      string
	chunkSize      string
	format         string
	bwLimit        string
	followSymlinks bool
	filterFile     string
	logFile        string
	dbFile         string
	configFile     string
	depth          int
	ref            string
	sshKey         string
	knownHosts     string
	sshInsecure    bool
	verbose        bool
	quiet          bool
	noProgress     bool
	showVersion    bool
	benchmark      bool
}

//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: main CLI entry point wires every flag
func run() int {
	var (
		opts  options
		chain *filter.Chain
	)

	rootCmd := &cobra.Command{
		Use:   "treehash [flags] [path | git-url]",
		Short: "Concurrent content fingerprints for every file in a tree",
		Long: `treehash walks a directory tree (or a freshly cloned git repository) and
prints a content digest for every regular file, reading at most --workers
files at a time.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintf(os.Stdout, "treehash %s\n", version)
				return nil
			}

			cfg, err := loadConfig(opts.configFile)
			if err != nil {
				return err
			}
			applyConfigDefaults(cmd, cfg, &opts)

			policy, err := engine.ParsePolicy(opts.policy)
			if err != nil {
				return err
			}
			algo, err := engine.ParseAlgorithm(opts.algorithm)
			if err != nil {
				return err
			}
			format, err := ui.ParseFormat(opts.format)
			if err != nil {
				return err
			}
			chunkSize, err := parseOptionalSize("chunk-size", opts.chunkSize)
			if err != nil {
				return err
			}
			bwLimit, err := parseOptionalSize("bwlimit", opts.bwLimit)
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			logger, closeLog, err := newLogger(opts, runID)
			if err != nil {
				return err
			}
			defer closeLog()
			slog.SetDefault(logger)

			if opts.filterFile != "" {
				if err := chain.LoadFile(opts.filterFile); err != nil {
					return fmt.Errorf("load filter file: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			target := "."
			if len(args) == 1 {
				target = args[0]
			}
			cloneOpts := transport.CloneOptions{
				Depth: opts.depth,
				Ref:   opts.ref,
				SSH: transport.SSHOpts{
					KeyFile:    opts.sshKey,
					KnownHosts: opts.knownHosts,
					Insecure:   opts.sshInsecure,
				},
			}
			if opts.verbose {
				cloneOpts.Progress = os.Stderr
			}
			root, cleanup, loc, err := transport.Acquire(ctx, target, cloneOpts)
			if err != nil {
				return err
			}
			defer cleanup()
			if loc.IsRemote() {
				logger.Info("cloned repository", "url", loc.String(), "dir", root)
			}

			workers := opts.workers
			if workers <= 0 {
				workers = runtime.NumCPU()
			}
			if opts.benchmark {
				bench, benchErr := engine.RunBenchmark(ctx, root, algo)
				if benchErr != nil {
					logger.Warn("benchmark failed", "error", benchErr)
				} else {
					fmt.Fprintln(os.Stderr, engine.FormatBenchmark(bench, algo))
					if opts.workers <= 0 {
						workers = bench.SuggestedWorkers
					}
				}
			}

			collector := stats.NewCollector()
			events := make(chan event.Event, 256)
			presenterEvents := teeEvents(events, opts.logFile != "")

			isTTY := ui.IsTTY(os.Stderr.Fd())
			presenter := ui.NewPresenter(ui.Config{
				ErrWriter:  os.Stderr,
				Stats:      collector,
				Workers:    workers,
				Width:      ui.TermWidth(os.Stderr.Fd()),
				IsTTY:      isTTY,
				Quiet:      opts.quiet,
				Verbose:    opts.verbose,
				NoProgress: opts.noProgress,
			})

			engineCfg := engine.Config{
				Root:           root,
				Workers:        workers,
				ExcludeDirs:    opts.excludeDirs,
				FollowSymlinks: opts.followSymlinks,
				Algorithm:      algo,
				ChunkSize:      int(chunkSize),
				Policy:         policy,
				BWLimit:        bwLimit,
				Events:         events,
				Stats:          collector,
				Logger:         logger,
			}
			if !chain.Empty() {
				engineCfg.Filter = chain
			}

			var presenterErr error
			var presenterWg sync.WaitGroup
			presenterWg.Add(1)
			go func() {
				defer presenterWg.Done()
				presenterErr = presenter.Run(presenterEvents)
			}()

			started := time.Now()
			result := engine.Run(ctx, engineCfg)
			stop()
			close(events)
			presenterWg.Wait()
			if presenterErr != nil {
				fmt.Fprintf(os.Stderr, "presenter: %v\n", presenterErr)
			}

			if result.Err != nil {
				logger.Error("fingerprint failed", "error", result.Err)
				return &exitError{code: exitCodeFor(result)}
			}

			color := format != ui.FormatJSON && ui.IsTTY(os.Stdout.Fd())
			writer := ui.NewResultWriter(os.Stdout, os.Stderr, format, ui.StylesFromTheme(cfg.Theme), color)
			if err := writer.Write(result.Algorithm, result.Digests); err != nil {
				return fmt.Errorf("write results: %w", err)
			}

			if opts.dbFile != "" {
				if err := recordRun(opts.dbFile, manifest.Run{
					ID:        runID,
					Root:      target,
					Algorithm: result.Algorithm,
					Started:   started,
				}, result.Digests); err != nil {
					return err
				}
				logger.Debug("run recorded", "db", opts.dbFile)
			}

			if !opts.quiet {
				if summary := presenter.Summary(); summary != "" {
					fmt.Fprintln(os.Stderr, summary)
				}
			}

			if code := exitCodeFor(result); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}

	flags := rootCmd.Flags()
	flags.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	flags.IntVarP(&opts.workers, "workers", "n", 0, "maximum files read concurrently (default: NumCPU)")
	flags.StringSliceVar(&opts.excludeDirs, "exclude-dir", nil,
		`skip directories with this name (repeatable; default ".git", pass "" to skip nothing)`)
	chain = filterChainFlags(rootCmd)
	flags.StringVar(&opts.filterFile, "filter", "", "read filter rules from FILE")
	flags.StringVar(&opts.policy, "policy", "isolate", "per-file error policy (isolate or fail-fast)")
	flags.StringVar(&opts.algorithm, "algo", "sha256", "digest algorithm (sha256, blake3 or xxh64)")
	flags.StringVar(&opts.chunkSize, "chunk-size", "", "read size per chunk (e.g. 8K, 1M; default 8K)")
	flags.BoolVar(&opts.followSymlinks, "follow-symlinks", false, "hash symlinks that point at regular files")
	flags.StringVar(&opts.format, "format", "plain", "output format (plain, sum or json)")
	flags.StringVar(&opts.bwLimit, "bwlimit", "", "aggregate read limit (e.g. 100M, 1G)")
	flags.StringVar(&opts.logFile, "log", "", "write structured JSON log to FILE")
	flags.StringVar(&opts.dbFile, "db", "", "record the run's digests in a SQLite manifest at FILE")
	flags.StringVar(&opts.configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/treehash/config.toml)")
	flags.IntVar(&opts.depth, "depth", 0, "shallow clone depth for git URLs (0 = full history)")
	flags.StringVar(&opts.ref, "ref", "", "branch or full ref to check out for git URLs")
	flags.StringVar(&opts.sshKey, "ssh-key", "", "SSH private key for git remotes (default: agent, then ~/.ssh/id_*)")
	flags.StringVar(&opts.knownHosts, "known-hosts", "", "known_hosts file for git remotes (default: ~/.ssh/known_hosts)")
	flags.BoolVar(&opts.sshInsecure, "ssh-insecure", false, "skip SSH host key verification for git remotes")
	flags.BoolVar(&opts.benchmark, "benchmark", false, "measure read and hash throughput first and pick --workers")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress all output except results and errors")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "disable progress display")

	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(runsCmd)

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok { //nolint:errorlint // RunE returns exitError unwrapped
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

// filterChainFlags registers --exclude and --include on cmd. Both append to
// the returned chain in command-line order.
func filterChainFlags(cmd *cobra.Command) *filter.Chain {
	chain := filter.NewChain()
	flags := cmd.Flags()
	flags.VarP(&filterFlag{chain: chain, include: false}, "exclude", "", "exclude files matching PATTERN (repeatable)")
	flags.VarP(&filterFlag{chain: chain, include: true}, "include", "", "include files matching PATTERN (repeatable)")
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "exclude" || f.Name == "include" {
			f.NoOptDefVal = ""
		}
	})
	return chain
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config", "error", err)
		return config.Config{}, nil
	}
	return cfg, nil
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(cmd *cobra.Command, cfg config.Config, opts *options) {
	changed := cmd.Flags().Changed
	d := cfg.Defaults

	if !changed("workers") && d.Workers != nil {
		opts.workers = *d.Workers
	}
	if !changed("exclude-dir") && d.Exclude != nil {
		opts.excludeDirs = d.Exclude
	}
	if !changed("policy") && d.Policy != nil {
		opts.policy = *d.Policy
	}
	if !changed("algo") && d.Algorithm != nil {
		opts.algorithm = *d.Algorithm
	}
	if !changed("chunk-size") && d.ChunkSize != nil {
		opts.chunkSize = *d.ChunkSize
	}
	if !changed("follow-symlinks") && d.FollowSymlinks != nil {
		opts.followSymlinks = *d.FollowSymlinks
	}
	if !changed("format") && d.Format != nil {
		opts.format = *d.Format
	}
	if !changed("bwlimit") && d.BWLimit != nil {
		opts.bwLimit = *d.BWLimit
	}
	if !changed("depth") && cfg.Clone.Depth != nil {
		opts.depth = *cfg.Clone.Depth
	}
	if !changed("ref") && cfg.Clone.Ref != nil {
		opts.ref = *cfg.Clone.Ref
	}
	if !changed("ssh-key") && cfg.Clone.SSHKey != nil {
		opts.sshKey = *cfg.Clone.SSHKey
	}
	if !changed("known-hosts") && cfg.Clone.KnownHosts != nil {
		opts.knownHosts = *cfg.Clone.KnownHosts
	}
}

func parseOptionalSize(name, s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := filter.ParseSize(s)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return n, nil
}

// newLogger builds the stderr text logger and, with --log, tees records into
// a JSON file. Every record carries the run's ID.
func newLogger(opts options, runID string) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	switch {
	case opts.verbose:
		level = slog.LevelDebug
	case opts.quiet:
		level = slog.LevelWarn
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	var handler slog.Handler = textHandler
	closeLog := func() {}
	if opts.logFile != "" {
		lf, err := os.Create(opts.logFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		closeLog = func() { _ = lf.Close() }
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	return slog.New(handler).With("run_id", runID), closeLog, nil
}

// teeEvents logs every event at Debug before forwarding it when enabled.
func teeEvents(events <-chan event.Event, enabled bool) <-chan event.Event {
	if !enabled {
		return events
	}
	teed := make(chan event.Event, cap(events))
	go func() {
		defer close(teed)
		for ev := range events {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.String("path", ev.Path),
				slog.Int64("size", ev.Size),
				slog.Int("worker", ev.WorkerID),
			}
			if ev.Digest != "" {
				attrs = append(attrs, slog.String("digest", ev.Digest))
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			slog.LogAttrs(context.Background(), slog.LevelDebug, "treehash.event", attrs...)
			teed <- ev
		}
	}()
	return teed
}

// exitCodeFor maps a run to the process exit status: 0 when every file
// hashed, 1 when some files or directories failed, 2 when the run produced
// no results.
func exitCodeFor(res engine.Result) int {
	switch {
	case res.Err != nil:
		return 2
	case res.Failed() > 0 || len(res.ScanErrors) > 0:
		return 1
	default:
		return 0
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
