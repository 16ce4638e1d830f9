// File: cmd/analyze.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/config"
	"github.com/xkilldash9x/a11yscan/internal/observability"
	"github.com/xkilldash9x/a11yscan/internal/reporting"
	"github.com/xkilldash9x/a11yscan/internal/service"
)

type analyzeOptions struct {
	concurrency int
	save        bool
	format      string
	output      string
	headless    bool
	stealth     bool
	humanize    bool
}

func newAnalyzeCmd(factory service.ComponentFactory) *cobra.Command {
	opts := analyzeOptions{}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [urls...]",
		Short: "Audits one or more pages and prints the reports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			applyAnalyzeFlagOverrides(cmd, cfg, opts)
			return runAnalyze(ctx, cfg, factory, args, opts, observability.GetLogger())
		},
	}

	flags := analyzeCmd.Flags()
	flags.IntVar(&opts.concurrency, "concurrency", 2, "number of pages audited at the same time")
	flags.BoolVar(&opts.save, "save", false, "persist the reports to the database")
	flags.StringVarP(&opts.format, "format", "f", "json", "output format (json, sarif)")
	flags.StringVarP(&opts.output, "output", "o", "", "output file path (default is stdout)")
	flags.BoolVar(&opts.headless, "headless", true, "run the browser without a window")
	flags.BoolVar(&opts.stealth, "stealth", false, "mask automation signals in the browser")
	flags.BoolVar(&opts.humanize, "humanize", false, "move the pointer like a person before scanning")
	return analyzeCmd
}

// applyAnalyzeFlagOverrides applies only the flags the user actually set, so
// config file and environment values survive otherwise.
func applyAnalyzeFlagOverrides(cmd *cobra.Command, cfg config.Interface, opts analyzeOptions) {
	if cmd.Flags().Changed("headless") {
		cfg.SetBrowserHeadless(opts.headless)
	}
	if cmd.Flags().Changed("stealth") {
		cfg.SetBrowserStealth(opts.stealth)
	}
	if cmd.Flags().Changed("humanize") {
		cfg.SetAnalysisHumanize(opts.humanize)
	}
}

func runAnalyze(ctx context.Context, cfg config.Interface, factory service.ComponentFactory, targets []string, opts analyzeOptions, logger *zap.Logger) error {
	if opts.concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1, got %d", opts.concurrency)
	}
	urls, err := normalizeTargets(targets)
	if err != nil {
		return err
	}

	// Open the reporter first so a bad format or path fails before a browser starts.
	reporter, err := reporting.New(opts.format, opts.output, Version, logger)
	if err != nil {
		return err
	}

	storeNeed := service.StoreOff
	if opts.save {
		storeNeed = service.StoreRequired
	}
	comps, err := factory.Create(ctx, cfg, service.Needs{Analysis: true, Store: storeNeed}, logger)
	if err != nil {
		_ = reporter.Close()
		return fmt.Errorf("failed to initialize analysis components: %w", err)
	}
	defer comps.Shutdown()

	reports := make([]schemas.Report, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			reports[i] = comps.Analyzer.Analyze(gctx, u)
			return nil
		})
	}
	// Analyze never fails, so Wait only returns once every page is done.
	_ = g.Wait()

	var errs []error
	for _, report := range reports {
		if err := reporter.Write(report); err != nil {
			errs = append(errs, fmt.Errorf("failed to write report for %s: %w", report.URL, err))
		}
		if opts.save {
			stored, err := comps.Store.Create(ctx, report)
			if err != nil {
				errs = append(errs, fmt.Errorf("failed to save report for %s: %w", report.URL, err))
				continue
			}
			logger.Info("Report saved.", zap.String("id", stored.ID), zap.String("url", report.URL))
		}
	}
	if err := reporter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to finalize output: %w", err))
	}

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// normalizeTargets adds a missing scheme and rejects anything that is not an
// absolute http(s) URL.
func normalizeTargets(targets []string) ([]string, error) {
	urls := make([]string, 0, len(targets))
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, errors.New("empty URL")
		}
		if !strings.Contains(t, "://") {
			t = "https://" + t
		}
		u, err := url.Parse(t)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("invalid URL %q", t)
		}
		urls = append(urls, t)
	}
	return urls, nil
}
