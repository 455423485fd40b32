package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/surprisetalk/commentsheet/internal/comments"
	"github.com/surprisetalk/commentsheet/internal/config"
	"github.com/surprisetalk/commentsheet/internal/listview"
	"github.com/surprisetalk/commentsheet/internal/logging"
)

// app holds flag values and the state built from them before a command runs.
type app struct {
	configPath string
	endpoint   string
	pageSize   string
	debounce   time.Duration
	logFile    string
	logLevel   string
	insecure   bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "commentsheet",
		Short: "Browse, search and edit comments from a REST endpoint",
		Long: `commentsheet fetches a comment collection once and shows it as a table.

Search filters on name, email and body. Columns 1-4 sort, n/p page through
results, e edits a row and d deletes it. Edits stay in memory and are lost
when the program exits.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInteractive(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", config.DefaultPath(), "config file")
	pf.StringVar(&a.endpoint, "endpoint", "", "comments endpoint URL")
	pf.StringVar(&a.pageSize, "page-size", "", `rows per page, or "all"`)
	pf.DurationVar(&a.debounce, "debounce", 0, "delay before a search is applied")
	pf.StringVar(&a.logFile, "log-file", "", `log file ("" disables logging)`)
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")
	pf.BoolVar(&a.insecure, "insecure", false, "allow private and loopback endpoints")

	root.AddCommand(newDumpCmd(a))
	return root
}

// setup loads config, applies flags that were set explicitly and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint = a.endpoint
	}
	if flags.Changed("page-size") {
		cfg.View.PageSize = a.pageSize
	}
	if flags.Changed("debounce") {
		cfg.Search.Debounce = a.debounce
	}
	if flags.Changed("log-file") {
		cfg.Logging.File = a.logFile
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if a.insecure {
		cfg.Fetch.SafeClient = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{File: cfg.Logging.File, Level: cfg.Logging.Level})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	logger.Info("starting",
		zap.String("command", cmd.Name()),
		zap.Stringer("config", cfg),
		zap.Bool("safe_client", cfg.Fetch.SafeClient),
	)
	return nil
}

func (a *app) runInteractive(ctx context.Context) error {
	params, err := a.cfg.Params()
	if err != nil {
		return err
	}
	sizes, err := a.cfg.PageSizeOptions()
	if err != nil {
		return err
	}

	list := listview.New(newSource(a.cfg, a.logger), a.logger.Named("list"), listview.WithParams(params))
	m := initialModel(ctx, list, a.logger,
		withDebounce(a.cfg.Search.Debounce),
		withPageSizes(sizes),
		withReloadLimiter(newReloadLimiter(a.cfg.Reload.MinInterval)),
	)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if fm, ok := final.(model); ok {
		fm.teardown()
	} else {
		m.teardown()
	}
	return err
}

func newDumpCmd(a *app) *cobra.Command {
	var (
		search string
		sortBy string
		desc   bool
		page   int
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Fetch once and print one page of comments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.cfg.Params()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("sort") {
				col, err := listview.ParseColumn(sortBy)
				if err != nil {
					return err
				}
				p.Column = col
				p.Order = listview.Asc
			}
			if desc {
				p.Order = listview.Desc
			}
			p = p.WithSearch(search)

			list, err := dumpList(cmd.Context(), newSource(a.cfg, a.logger), a.logger.Named("list"), p)
			if err != nil {
				return err
			}
			defer list.Close()

			sorted := list.Sorted()
			p = p.WithPage(page, listview.TotalPages(len(sorted), p.PageSize))
			rows := listview.Paginate(sorted, p.Page, p.PageSize)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(rows))
			fmt.Fprintf(out, "page %d of %d (%d matching, %d total)\n",
				p.Page, listview.TotalPages(len(sorted), p.PageSize), len(sorted), list.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "filter on name, email and body")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort column: id, name, email or body")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&page, "page", 1, "page to print")
	return cmd
}

func renderTable(rows []comments.Comment) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("id", "name", "email", "body").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			if col == 0 {
				return s.Align(lipgloss.Right)
			}
			return s
		})
	for _, c := range rows {
		t.Row(strconv.Itoa(c.ID), truncate(flatten(c.Name), 30), truncate(flatten(c.Email), 30), truncate(flatten(c.Body), 60))
	}
	return t.String()
}

func truncate(s string, n int) string {
	return ansi.Truncate(s, n, "…")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
