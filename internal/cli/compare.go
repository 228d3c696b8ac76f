package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sheetdiff/internal/compare"
	"sheetdiff/internal/config"
	"sheetdiff/internal/ocr"
	"sheetdiff/internal/pageio"
	"sheetdiff/internal/raster"

	"github.com/spf13/cobra"
)

// compareOpts holds the command-line flags for the compare command.
type compareOpts struct {
	oldDir     string        // directory of the previous revision
	newDir     string        // directory of the current revision
	outDir     string        // overlays and report are written here
	configPath string        // optional TOML configuration
	useOCR     bool          // read identifiers from the title block
	ocrLang    string        // Tesseract language
	report     string        // report format: yaml or json
	workers    int           // overrides run.workers when > 0
	timeout    time.Duration // overrides run.pair_timeout when > 0
}

func (c *CLI) compareCommand() *cobra.Command {
	opts := compareOpts{ocrLang: "eng", report: pageio.FormatYAML}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two revisions of a drawing set",
		Long: `Compare pairs the sheets of --old and --new by identifier, aligns each pair and
writes <identifier>_overlay.png plus a batch report into --out.

Identifiers are read from file names such as A-101.png, or from the title block
with --ocr (requires a build with -tags ocr).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCompare(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.oldDir, "old", "", "directory with the previous revision's pages")
	f.StringVar(&opts.newDir, "new", "", "directory with the current revision's pages")
	f.StringVarP(&opts.outDir, "out", "o", "", "output directory for overlays and the report")
	f.StringVarP(&opts.configPath, "config", "c", "", "TOML configuration file")
	f.BoolVar(&opts.useOCR, "ocr", false, "read sheet identifiers from the title block")
	f.StringVar(&opts.ocrLang, "ocr-lang", opts.ocrLang, "OCR language")
	f.StringVar(&opts.report, "report", opts.report, "report format: yaml or json")
	f.IntVarP(&opts.workers, "workers", "j", 0, "parallel pairs (overrides run.workers)")
	f.DurationVar(&opts.timeout, "timeout", 0, "per-pair timeout (overrides run.pair_timeout)")
	_ = cmd.MarkFlagRequired("old")
	_ = cmd.MarkFlagRequired("new")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func (c *CLI) runCompare(ctx context.Context, opts compareOpts) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.workers > 0 {
		cfg.Run.Workers = opts.workers
	}
	if opts.timeout > 0 {
		cfg.Run.PairTimeout = config.Duration(opts.timeout)
	}

	// Fail on a bad report format before any work is done.
	switch opts.report {
	case pageio.FormatYAML, pageio.FormatJSON:
	default:
		return fmt.Errorf("unknown report format %q (want yaml or json)", opts.report)
	}

	identify := pageio.IdentifyFunc(pageio.ByFilename)
	if opts.useOCR {
		engine, err := ocr.NewEngine(opts.ocrLang)
		if err != nil {
			return err
		}
		defer engine.Close()
		identify = pageio.ByTitleBlock(ocr.NewIdentifier(engine, ocr.TitleBlock))
	}

	start := time.Now()
	oldPages, err := pageio.LoadDir(ctx, opts.oldDir, raster.OriginOld, identify)
	if err != nil {
		return fmt.Errorf("old set: %w", err)
	}
	newPages, err := pageio.LoadDir(ctx, opts.newDir, raster.OriginNew, identify)
	if err != nil {
		return fmt.Errorf("new set: %w", err)
	}
	c.Logger.Info("loaded drawing sets", "old", len(oldPages), "new", len(newPages),
		"backend", backendName, "elapsed", time.Since(start).Round(time.Millisecond))

	backend, err := backendOptions(cfg)
	if err != nil {
		return err
	}
	orch, err := compare.New(cfg, append(backend, compare.WithLogger(c.Logger))...)
	if err != nil {
		return err
	}
	res := orch.Compare(ctx, oldPages, newPages)

	overlays, err := pageio.WriteOverlays(opts.outDir, res)
	if err != nil {
		return err
	}
	reportPath := filepath.Join(opts.outDir, "report."+opts.report)
	if err := writeReportFile(reportPath, pageio.NewReport(res, overlays), opts.report); err != nil {
		return err
	}
	c.Logger.Debug("wrote report", "path", reportPath, "overlays", len(overlays))

	c.printSummary(res)
	return nil
}

func writeReportFile(path string, rep pageio.Report, format string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := pageio.WriteReport(f, rep, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printSummary writes one line per pair followed by the batch totals.
func (c *CLI) printSummary(res *compare.BatchResult) {
	for i := range res.Outcomes {
		o := &res.Outcomes[i]
		verdict := o.State()
		if changed, ok := o.ChangesDetected(); ok {
			verdict = "unchanged"
			if changed {
				verdict = fmt.Sprintf("changed (-%d +%d)", o.Overlay.Removed, o.Overlay.Added)
			}
		} else if o.Code != "" {
			verdict = fmt.Sprintf("%s [%s]", verdict, o.Code)
		}
		fmt.Fprintf(c.Out, "%-12s %-6.3f %s\n", o.Pair.Identifier, o.Score(), verdict)
	}
	for _, id := range res.UnmatchedOld {
		fmt.Fprintf(c.Out, "%-12s removed sheet\n", id)
	}
	for _, id := range res.UnmatchedNew {
		fmt.Fprintf(c.Out, "%-12s added sheet\n", id)
	}

	s := res.Summary
	fmt.Fprintf(c.Out, "\n%d pairs: %d compared (%d changed), %d alignment failed, %d errors, %d timeouts\n",
		s.Pairs, s.Succeeded, s.Changed, s.AlignmentFailed, s.Errors, s.Timeouts)
	if s.Unidentified > 0 {
		fmt.Fprintf(c.Out, "%d pages without an identifier were skipped\n", s.Unidentified)
	}
}
