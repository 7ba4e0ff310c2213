// Command openair fills in and saves the OpenAir timesheet grid for today.
//
// It reads the per-page tokens out of a loaded timesheet page, books the
// configured allocations onto every open weekday, and posts the grid form
// back, either over plain HTTP with a session cookie or from inside a
// running Chrome tab.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// now is swapped in tests.
var now = time.Now

type app struct {
	configPath string
	verbose    bool
	dryRun     bool
	file       string
	limit      int

	cfg    *Config
	logger *zap.Logger

	// nil means http.DefaultTransport
	transport http.RoundTripper
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "openair",
		Short: "Fill in and save the OpenAir timesheet grid",
		Long: `openair books the configured allocations onto today's OpenAir
timesheet: 8 hours on every weekday cell the grid leaves open.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a.logger, err = newLogger(a.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.cfg, err = LoadConfig(a.configPath)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", DefaultConfigPath, "Config file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")

	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the request that would be posted",
		Args:  cobra.NoArgs,
		RunE:  a.runPreview,
	}
	previewCmd.Flags().StringVarP(&a.file, "file", "f", "", "Read a saved timesheet page instead of fetching it")

	submitCmd := &cobra.Command{
		Use:   "submit [timesheet-url]",
		Short: "Fetch the timesheet page over HTTP and save the grid",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runSubmit,
	}
	submitCmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Print the request instead of posting it")

	browserCmd := &cobra.Command{
		Use:   "browser",
		Short: "Save the grid from the timesheet tab of a running Chrome",
		Args:  cobra.NoArgs,
		RunE:  a.runBrowser,
	}
	browserCmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Print the request instead of submitting it")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List past submissions",
		Args:  cobra.NoArgs,
		RunE:  a.runHistory,
	}
	historyCmd.Flags().IntVarP(&a.limit, "limit", "n", 20, "Number of entries, 0 for all")

	rootCmd.AddCommand(previewCmd, submitCmd, browserCmd, historyCmd)
	return rootCmd
}

// prepare builds the grid request for page.
func (a *app) prepare(p *Page) (string, Fields) {
	grid := GenerateGridFields(a.cfg.Allocations, p.Inputs)
	return PostURL(a.cfg.Host, p.Tokens), BuildRequest(p.Tokens, FormatDate(now()), grid)
}

func (a *app) client() (*Client, error) {
	cookies, err := a.cfg.Cookies()
	if err != nil {
		return nil, err
	}
	c, err := NewClient(a.cfg.BaseURL(), cookies, a.logger)
	if err != nil {
		return nil, err
	}
	if a.transport != nil {
		c.Transport = a.transport
	}
	return c, nil
}

func (a *app) timesheetURL(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if a.cfg.TimesheetURL == "" {
		return "", fmt.Errorf("no timesheet url: pass one or set timesheet_url")
	}
	return a.cfg.TimesheetURL, nil
}

func (a *app) runPreview(cmd *cobra.Command, args []string) error {
	var p *Page
	if a.file != "" {
		f, err := os.Open(a.file)
		if err != nil {
			return err
		}
		defer f.Close()
		p, err = ParsePage(f)
		if err != nil {
			return fmt.Errorf("parse %s: %w", a.file, err)
		}
	} else {
		c, err := a.client()
		if err != nil {
			return err
		}
		p, err = a.fetch(cmd.Context(), c, nil)
		if err != nil {
			return err
		}
	}

	postURL, fields := a.prepare(p)
	return renderPreview(cmd.OutOrStdout(), postURL, fields)
}

func (a *app) fetch(ctx context.Context, c *Client, args []string) (*Page, error) {
	pageURL, err := a.timesheetURL(args)
	if err != nil {
		return nil, err
	}
	return c.FetchPage(ctx, pageURL)
}

func (a *app) runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	// one client, so cookies set by the page load travel with the post
	c, err := a.client()
	if err != nil {
		return err
	}
	p, err := a.fetch(ctx, c, args)
	if err != nil {
		return err
	}

	postURL, fields := a.prepare(p)
	if a.dryRun {
		return renderPreview(cmd.OutOrStdout(), postURL, fields)
	}

	res, err := c.Submit(ctx, postURL, fields)
	if err != nil {
		return fmt.Errorf("submit timesheet %s: %w", p.TimesheetID, err)
	}
	a.logger.Info("timesheet saved",
		zap.String("timesheet_id", p.TimesheetID),
		zap.Int("status", res.Status),
		zap.String("final_url", res.FinalURL))

	a.record(&Submission{
		UID:         p.UID,
		TimesheetID: p.TimesheetID,
		Date:        formatValue(fields["_date"]),
		Mode:        "http",
		URL:         postURL,
		Status:      res.Status,
		Fields:      len(fields),
	})
	return nil
}

func (a *app) runBrowser(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b := NewLiveBrowser(a.cfg.Browser, a.logger)
	if err := b.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			a.logger.Warn("failed to close browser", zap.Error(err))
		}
	}()

	if a.cfg.Browser.DebuggerURL == "" {
		cookies, err := a.cfg.Cookies()
		if err != nil {
			return err
		}
		if err := b.SeedCookies(a.cfg.Host, cookies); err != nil {
			return fmt.Errorf("set cookies: %w", err)
		}
	}

	page, err := b.TimesheetPage(ctx, a.cfg.TimesheetURL)
	if err != nil {
		return err
	}
	p, err := ReadLivePage(page)
	if err != nil {
		return err
	}

	postURL, fields := a.prepare(p)
	if a.dryRun {
		return renderPreview(cmd.OutOrStdout(), postURL, fields)
	}
	if err := SubmitLive(page, postURL, fields); err != nil {
		return err
	}
	a.logger.Info("timesheet form submitted from browser", zap.String("timesheet_id", p.TimesheetID))

	a.record(&Submission{
		UID:         p.UID,
		TimesheetID: p.TimesheetID,
		Date:        formatValue(fields["_date"]),
		Mode:        "browser",
		URL:         postURL,
		Fields:      len(fields),
	})
	return nil
}

// record appends s to the history. Failures are only logged since the
// timesheet has already been posted.
func (a *app) record(s *Submission) {
	if a.cfg.HistoryDB == "" {
		return
	}
	h, err := NewHistory(a.cfg.HistoryDB)
	if err != nil {
		a.logger.Warn("failed to open history", zap.String("path", a.cfg.HistoryDB), zap.Error(err))
		return
	}
	defer h.Close()
	if err := h.Record(s); err != nil {
		a.logger.Warn("failed to record submission", zap.Error(err))
	}
}

func (a *app) runHistory(cmd *cobra.Command, args []string) error {
	if a.cfg.HistoryDB == "" {
		return fmt.Errorf("history_db is not configured")
	}
	h, err := NewHistory(a.cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer h.Close()

	subs, err := h.List(a.limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, s := range subs {
		fmt.Fprintf(out, "%s  %s  %-7s  timesheet %s  %d fields  status %d\n",
			s.SubmittedAt.Local().Format("2006-01-02 15:04"), s.Date, s.Mode, s.TimesheetID, s.Fields, s.Status)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
