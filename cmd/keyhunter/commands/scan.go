package commands

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/silvanforge/keyhunter/internal/dispatch"
	"github.com/silvanforge/keyhunter/internal/finding"
	"github.com/silvanforge/keyhunter/internal/logging"
	"github.com/silvanforge/keyhunter/internal/output"
	"github.com/silvanforge/keyhunter/internal/prefilter"
	"github.com/silvanforge/keyhunter/internal/rules"
	"github.com/silvanforge/keyhunter/internal/scanbytes"
	"github.com/silvanforge/keyhunter/internal/scanutf8"
	"github.com/silvanforge/keyhunter/internal/walker"
)

func newScanCmd() *cobra.Command {
	var (
		input       string
		outputPath  string
		threadsFlag string
		maxFileSize int64
		engine      string
		rulesPath   string
		minScore    float64
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a directory for secrets and write a JSON findings array",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = minScore // accepted, currently has no effect (spec §6)

			logger := logging.FromEnv()

			specs, err := rules.Load(rulesPath)
			if err != nil {
				return fmt.Errorf("loading rules: %w", err)
			}
			logger.Info("loaded rules", "count", len(specs), "path", rulesPath)

			threads, err := resolveThreads(threadsFlag)
			if err != nil {
				return fmt.Errorf("parsing --threads: %w", err)
			}
			if engine == "utf8" {
				// spec §4.5/§4.7: the UTF-8 engine always bypasses the
				// parallel dispatcher and runs sequentially.
				threads = 1
			}

			entries, err := walker.List(input, maxFileSize)
			if err != nil {
				return fmt.Errorf("walking input directory: %w", err)
			}
			logger.Info("enumerated input", "files", len(entries), "dir", input)

			out, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer out.Close()

			plan := prefilter.Build(specs)
			if err := plan.CompileAll(); err != nil {
				// Dormant rules don't abort the run (spec §7): log the
				// joined set of RegexErrors once, up front, instead of
				// discovering them piecemeal as scanning proceeds.
				logger.Warn("some rules failed to compile and will be skipped", "err", err)
			}

			scanFn, err := scannerFor(engine, plan)
			if err != nil {
				return err
			}

			writer := output.NewWriter(out)
			stats, err := dispatch.Run(entries, threads, scanFn, writer)
			if err != nil {
				return fmt.Errorf("scanning: %w", err)
			}
			if err := writer.Close(); err != nil {
				return fmt.Errorf("finalizing output: %w", err)
			}

			logger.Info("scan complete", "output", outputPath,
				"files_scanned", stats.FilesScanned,
				"candidates_total", stats.CandidatesTotal,
				"outputs_written", stats.OutputsWritten)
			fmt.Fprintf(cmd.ErrOrStderr(), "files_scanned=%d candidates_total=%d outputs_written=%d\n",
				stats.FilesScanned, stats.CandidatesTotal, stats.OutputsWritten)
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "input directory to scan (required)")
	cmd.Flags().StringVar(&outputPath, "output", "./result.json", "output JSON file path")
	cmd.Flags().StringVar(&threadsFlag, "threads", "auto", `worker count: "auto" or a positive integer`)
	cmd.Flags().Int64Var(&maxFileSize, "max-file-size", 0, "skip files larger than this many bytes (0 = no gate)")
	cmd.Flags().StringVar(&engine, "engine", "bytes", "scan engine: bytes|utf8")
	cmd.Flags().StringVar(&rulesPath, "rules", "./rules/default.toml", "path to the rule catalog")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "accepted for compatibility; currently has no effect")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// scannerFor selects the engine's ScanFunc. utf8 always bypasses the byte
// engine's chunking and prefilter entirely, per spec §4.5.
func scannerFor(engine string, plan *prefilter.Plan) (dispatch.ScanFunc, error) {
	switch engine {
	case "bytes", "":
		return func(e walker.Entry) ([]finding.Finding, int, error) {
			if e.Size > scanbytes.SmallFileMax {
				return scanbytes.ScanLarge(e.Path, e.Name, plan)
			}
			return scanbytes.ScanSmall(e.Path, e.Name, plan)
		}, nil
	case "utf8":
		return func(e walker.Entry) ([]finding.Finding, int, error) {
			return scanutf8.Scan(e.Path, e.Name, plan)
		}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want bytes or utf8)", engine)
	}
}

func resolveThreads(flag string) (int, error) {
	if flag == "auto" || flag == "" {
		return runtime.NumCPU(), nil
	}
	n, err := strconv.Atoi(flag)
	if err != nil {
		return 0, fmt.Errorf("must be \"auto\" or a positive integer, got %q", flag)
	}
	if n < 1 {
		return 0, fmt.Errorf("must be >= 1, got %d", n)
	}
	return n, nil
}
