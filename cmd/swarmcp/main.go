// Command swarmcp runs the traversal-and-chunking producer stage of a
// multi-worker copy pipeline against a local work queue: it mirrors the
// source directory tree under the destination root and emits one COPY
// work item per fixed-size byte range of every regular file.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/swarmcp/swarmcp/internal/config"
	"github.com/swarmcp/swarmcp/internal/op"
	"github.com/swarmcp/swarmcp/internal/queue"
	"github.com/swarmcp/swarmcp/internal/stats"
	"github.com/swarmcp/swarmcp/internal/walk"
)

var version = "dev"

const defaultChunkSize = "4M"

func main() {
	os.Exit(run())
}

// filterFlag is a custom pflag.Value that preserves CLI ordering of
// --exclude and --include rules by appending to a shared RuleChain.
type filterFlag struct {
	chain   *walk.RuleChain
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

type walkOpts struct {
	sources   []string
	dest      string
	chain     *walk.RuleChain
	manifest  string
	chunkSize int64
	workers   int
	reliable  bool
	quiet     bool
}

func run() int {
	var (
		chunkSizeStr string
		workers      int
		reliable     bool
		manifestPath string
		verbose      bool
		quiet        bool
		showVersion  bool
	)

	chain := walk.NewRuleChain()

	rootCmd := &cobra.Command{
		Use:   "swarmcp [flags] <source>... <destination>",
		Short: "Parallel treewalk and chunking stage for distributed file copies",
		Args: func(_ *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			if len(args) < 2 {
				return fmt.Errorf("need at least one source and a destination")
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println("swarmcp", version)
				return nil
			}

			setupLogging(verbose, quiet)

			fileCfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyDefaults(cmd.Flags(), fileCfg, &chunkSizeStr, &workers, &reliable)

			chunkSize, err := config.ParseSize(chunkSizeStr)
			if err != nil {
				return fmt.Errorf("invalid --chunk-size: %w", err)
			}
			if chunkSize <= 0 {
				return fmt.Errorf("invalid --chunk-size: must be positive")
			}

			return runWalk(cmd.Context(), walkOpts{
				sources:   args[:len(args)-1],
				dest:      args[len(args)-1],
				chain:     chain,
				manifest:  manifestPath,
				chunkSize: chunkSize,
				workers:   workers,
				reliable:  reliable,
				quiet:     quiet,
			})
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&chunkSizeStr, "chunk-size", defaultChunkSize,
		"byte granularity for COPY work items (e.g. 512K, 4M)")
	flags.IntVarP(&workers, "workers", "w", 0, "number of queue workers (0 = auto)")
	flags.BoolVar(&reliable, "reliable", false,
		"treat the filesystem as reliable: abort on I/O error instead of retrying")
	flags.StringVar(&manifestPath, "manifest", "",
		"write emitted COPY operations to this file")
	flags.Var(&filterFlag{chain: chain}, "exclude", "exclude entries matching pattern (repeatable)")
	flags.Var(&filterFlag{chain: chain, include: true}, "include", "include entries matching pattern (repeatable)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress summary output")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "swarmcp: %v\n", err)
		return 1
	}
	return 0
}

func setupLogging(verbose, quiet bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	} else if quiet {
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// applyDefaults fills flag values from the config file where the user
// did not set them explicitly.
func applyDefaults(flags *pflag.FlagSet, cfg config.Config, chunkSize *string, workers *int, reliable *bool) {
	if !flags.Changed("chunk-size") && cfg.Defaults.ChunkSize != nil {
		*chunkSize = *cfg.Defaults.ChunkSize
	}
	if !flags.Changed("workers") && cfg.Defaults.Workers != nil {
		*workers = *cfg.Defaults.Workers
	}
	if !flags.Changed("reliable") && cfg.Defaults.Reliable != nil {
		*reliable = *cfg.Defaults.Reliable
	}
}

func runWalk(ctx context.Context, opts walkOpts) error {
	collector := stats.NewCollector()

	filters := opts.chain
	if filters.Empty() {
		filters = nil
	}

	walker, err := walk.New(walk.Config{
		DestRoot:  opts.dest,
		ChunkSize: opts.chunkSize,
		Reliable:  opts.reliable,
		Filters:   filters,
		Stats:     collector,
	})
	if err != nil {
		return err
	}

	var manifest *manifestWriter
	if opts.manifest != "" {
		manifest, err = newManifestWriter(opts.manifest)
		if err != nil {
			return err
		}
		defer manifest.Close()
	}

	// COPY items land back on the same queue the producer feeds. With no
	// copy stage attached they are recorded in the manifest or dropped;
	// the counters already saw them at emission.
	cb := func(o op.Operation, q queue.Enqueuer) error {
		switch o.Kind {
		case op.Treewalk:
			return walker.Process(o, q)
		case op.Copy:
			if manifest != nil {
				return manifest.Record(o)
			}
			return nil
		}
		return fmt.Errorf("unhandled %s operation", o.Kind)
	}

	eng := queue.New(opts.workers, cb)
	if err := seedSources(eng, opts.sources, opts.dest); err != nil {
		return err
	}

	if err := eng.Run(ctx); err != nil {
		return err
	}

	if manifest != nil {
		if err := manifest.Close(); err != nil {
			return err
		}
	}

	if !opts.quiet {
		fmt.Fprintln(os.Stderr, collector.Snapshot())
	}
	return nil
}

// seedSources enqueues the initial TREEWALK item for every source
// argument. The source base offset is the length of the absolute source
// path, so stripping it anywhere in the subtree yields the path relative
// to that source. When copying multiple sources, or into a destination
// directory that already exists, each source keeps its base name as the
// appendix under the destination root.
func seedSources(eng *queue.Engine, sources []string, dest string) error {
	destIsDir := false
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		destIsDir = true
	}

	for _, src := range sources {
		abs, err := filepath.Abs(src)
		if err != nil {
			return fmt.Errorf("resolve source %q: %w", src, err)
		}

		appendix := ""
		if len(sources) > 1 || destIsDir {
			appendix = filepath.Base(abs)
		}

		item, err := op.Encode(op.Operation{
			Kind:             op.Treewalk,
			Operand:          abs,
			SourceBaseOffset: uint32(len(abs)),
			DestBaseAppendix: appendix,
		})
		if err != nil {
			return fmt.Errorf("encode source %q: %w", src, err)
		}
		if err := eng.Enqueue(item); err != nil {
			return err
		}
	}
	return nil
}
