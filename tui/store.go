package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/surprisetalk/commentsheet/internal/comments"
	"github.com/surprisetalk/commentsheet/internal/config"
	"github.com/surprisetalk/commentsheet/internal/listview"
)

// loadedMsg carries a finished fetch back into Update.
type loadedMsg listview.Loaded

// searchTickMsg fires when the search debounce elapses. Only the tick matching the
// latest keystroke is applied.
type searchTickMsg struct {
	seq   int
	query string
}

// newSource builds the comment client from config.
func newSource(cfg *config.Config, logger *zap.Logger) *comments.Client {
	httpClient := comments.NewHTTPClient(cfg.Fetch.Timeout, cfg.Fetch.SafeClient)
	return comments.NewClient(httpClient, logger.Named("comments"),
		comments.WithEndpoint(cfg.Endpoint),
		comments.WithUserAgent(cfg.Fetch.UserAgent),
	)
}

// newReloadLimiter allows one manual reload per interval. A zero interval never
// throttles.
func newReloadLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// loadCmd starts a load on the list and returns the command that runs the fetch off
// the UI goroutine.
func (m model) loadCmd() tea.Cmd {
	fetch := m.list.Start(m.ctx)
	return func() tea.Msg {
		return loadedMsg(fetch())
	}
}

// applyLoaded hands a finished fetch to the list. Stale results and results arriving
// after teardown are dropped by the list itself.
func (m model) applyLoaded(msg loadedMsg) model {
	if !m.list.Finish(listview.Loaded(msg)) {
		return m
	}
	m.cursor = 0
	m.status = ""
	return m
}

// reload re-fetches the collection unless the limiter refuses.
func (m model) reload() (tea.Model, tea.Cmd) {
	if m.list.Loading() {
		return m, nil
	}
	if !m.reloads.Allow() {
		m.logger.Debug("reload throttled")
		m.status = "reload throttled"
		return m, nil
	}
	m.mode = modeNormal
	m.status = ""
	return m, tea.Batch(m.spinner.Tick, m.loadCmd())
}

// queueSearch applies the query now, or schedules it after the debounce delay.
func (m model) queueSearch(query string) (model, tea.Cmd) {
	if m.debounce <= 0 {
		m.applySearch(query)
		return m, nil
	}
	m.searchSeq++
	seq := m.searchSeq
	return m, tea.Tick(m.debounce, func(time.Time) tea.Msg {
		return searchTickMsg{seq: seq, query: query}
	})
}

func (m *model) applySearch(query string) {
	if query == m.list.Params().Search {
		return
	}
	m.list.SetSearchQuery(query)
	m.cursor = 0
}

// teardown cancels an outstanding fetch and disposes the list.
func (m model) teardown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.list.Close()
	m.logger.Debug("list closed")
}

// dumpList fetches once and returns a list ready for printing.
func dumpList(ctx context.Context, source comments.Fetcher, logger *zap.Logger, p listview.Params) (*listview.List, error) {
	l := listview.New(source, logger, listview.WithParams(p))
	if err := l.Load(ctx); err != nil {
		return nil, err
	}
	return l, nil
}
