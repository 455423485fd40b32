package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/surprisetalk/commentsheet/internal/comments"
	"github.com/surprisetalk/commentsheet/internal/listview"
)

func sampleComments(n int) []comments.Comment {
	out := make([]comments.Comment, n)
	for i := range out {
		out[i] = comments.Comment{
			ID:    i + 1,
			Name:  fmt.Sprintf("name %d", i+1),
			Email: fmt.Sprintf("user%d@example.com", i+1),
			Body:  fmt.Sprintf("body %d\nsecond line", i+1),
		}
	}
	out[6].Name = "alpha"
	return out
}

func staticSource(cs []comments.Comment) comments.Fetcher {
	return comments.FetcherFunc(func(context.Context) ([]comments.Comment, error) {
		return cs, nil
	})
}

func newTestModel(source comments.Fetcher, opts ...modelOption) model {
	list := listview.New(source, zap.NewNop())
	return initialModel(context.Background(), list, zap.NewNop(), opts...)
}

// readyModel runs one load to completion and sizes the window.
func readyModel(t *testing.T, cs []comments.Comment, opts ...modelOption) model {
	t.Helper()
	m := newTestModel(staticSource(cs), opts...)
	msg := m.loadCmd()()
	m = m.applyLoaded(msg.(loadedMsg))
	require.Equal(t, listview.Ready, m.list.State())
	return send(t, m, tea.WindowSizeMsg{Width: 160, Height: 40})
}

func send(t *testing.T, m model, msgs ...tea.Msg) model {
	t.Helper()
	for _, msg := range msgs {
		updated, _ := m.Update(msg)
		var ok bool
		m, ok = updated.(model)
		require.True(t, ok, "Update returned %T", updated)
	}
	return m
}

func runes(s string) []tea.Msg {
	var out []tea.Msg
	for _, r := range s {
		out = append(out, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return out
}

var (
	keyEnter    = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc      = tea.KeyMsg{Type: tea.KeyEsc}
	keyTab      = tea.KeyMsg{Type: tea.KeyTab}
	keyShiftTab = tea.KeyMsg{Type: tea.KeyShiftTab}
	keyCtrlC    = tea.KeyMsg{Type: tea.KeyCtrlC}
)

// loadFrom runs cmd, descending into batches, and returns the first loadedMsg.
func loadFrom(t *testing.T, cmd tea.Cmd) loadedMsg {
	t.Helper()
	require.NotNil(t, cmd)
	switch msg := cmd().(type) {
	case loadedMsg:
		return msg
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if lm, ok := c().(loadedMsg); ok {
				return lm
			}
		}
	}
	t.Fatal("no load command found")
	return loadedMsg{}
}

func TestInit_StartsLoading(t *testing.T) {
	m := newTestModel(staticSource(sampleComments(3)))
	cmd := m.Init()
	if cmd == nil {
		t.Fatal("expected init command")
	}
	assert.Equal(t, listview.Loading, m.list.State())

	m = send(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	assert.Contains(t, m.View(), "loading comments")

	m = send(t, m, loadFrom(t, cmd))
	assert.Equal(t, listview.Ready, m.list.State())
	assert.Equal(t, 3, m.list.Len())
}

func TestView_LoadFailed(t *testing.T) {
	m := newTestModel(comments.FetcherFunc(func(context.Context) ([]comments.Comment, error) {
		return nil, errors.New("connection refused")
	}))
	m = send(t, m, loadFrom(t, m.loadCmd()), tea.WindowSizeMsg{Width: 100, Height: 30})

	view := m.View()
	if !strings.Contains(view, "error loading comments") {
		t.Errorf("expected error view, got: %s", view)
	}
	if !strings.Contains(view, "connection refused") {
		t.Errorf("expected error message in view, got: %s", view)
	}
	assert.Contains(t, view, "r retry")
}

func TestView_Ready(t *testing.T) {
	m := readyModel(t, sampleComments(25))
	view := m.View()

	assert.Contains(t, view, "25 of 25")
	assert.Contains(t, view, "page 1/3")
	assert.Contains(t, view, "id ▲")
	assert.Contains(t, view, "user1@example.com")
	assert.Contains(t, view, "body 1 second line", "bodies are flattened to one line")
	assert.NotContains(t, view, "user11@example.com")
}

func TestWindowSizeMsg(t *testing.T) {
	m := readyModel(t, sampleComments(1))
	m = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 || m.height != 40 {
		t.Errorf("expected size 120x40, got %dx%d", m.width, m.height)
	}
}

func TestSpinnerStopsWhenReady(t *testing.T) {
	m := readyModel(t, sampleComments(1))
	_, cmd := m.Update(spinner.TickMsg{})
	assert.Nil(t, cmd)
}

func TestSearch_Immediate(t *testing.T) {
	m := readyModel(t, sampleComments(25))
	m = send(t, m, runes("/")...)
	require.Equal(t, modeSearch, m.mode)

	m = send(t, m, runes("alp")...)
	assert.Equal(t, "alp", m.list.Params().Search)
	assert.Equal(t, 1, m.list.TotalPages())
	rows := m.list.Paginated()
	require.Len(t, rows, 1)
	assert.Equal(t, 7, rows[0].ID)

	m = send(t, m, keyEnter)
	assert.Equal(t, modeNormal, m.mode)
	assert.Contains(t, m.View(), "search: alp")

	// esc in normal mode clears the search
	m = send(t, m, keyEsc)
	assert.Equal(t, "", m.list.Params().Search)
	assert.Equal(t, 25, listview.Count(m.list.Filtered()))
}

func TestSearch_ResetsPageAndCursor(t *testing.T) {
	m := readyModel(t, sampleComments(25))
	m = send(t, m, runes("nj")...)
	require.Equal(t, 2, m.list.Params().Page)
	require.Equal(t, 1, m.cursor)

	m = send(t, m, runes("/name")...)
	assert.Equal(t, 1, m.list.Params().Page)
	assert.Equal(t, 0, m.cursor)
}

func TestSearch_DebouncedDropsStaleTicks(t *testing.T) {
	m := readyModel(t, sampleComments(25), withDebounce(time.Hour))
	m = send(t, m, runes("/")...)

	updated, cmd := m.Update(runes("a")[0])
	m = updated.(model)
	assert.NotNil(t, cmd)
	assert.Equal(t, "", m.list.Params().Search, "debounced query must not apply yet")

	m = send(t, m, runes("l")...)
	require.Equal(t, 2, m.searchSeq)

	m = send(t, m, searchTickMsg{seq: 1, query: "a"})
	assert.Equal(t, "", m.list.Params().Search, "stale tick must be dropped")

	m = send(t, m, searchTickMsg{seq: 2, query: "al"})
	assert.Equal(t, "al", m.list.Params().Search)
}

func TestSearch_EnterAppliesPendingQuery(t *testing.T) {
	m := readyModel(t, sampleComments(25), withDebounce(time.Hour))
	m = send(t, m, runes("/alpha")...)
	require.Equal(t, "", m.list.Params().Search)

	m = send(t, m, keyEnter)
	assert.Equal(t, "alpha", m.list.Params().Search)

	// the tick scheduled by the last keystroke is now stale
	m = send(t, m, searchTickMsg{seq: 5, query: "alpha"})
	assert.Equal(t, "alpha", m.list.Params().Search)
}

func TestSortKeys(t *testing.T) {
	m := readyModel(t, sampleComments(25))

	m = send(t, m, runes("2")...)
	assert.Equal(t, listview.ColumnName, m.list.Params().Column)
	assert.Equal(t, listview.Asc, m.list.Params().Order)

	m = send(t, m, runes("2")...)
	assert.Equal(t, listview.Desc, m.list.Params().Order)
	assert.Contains(t, m.View(), "name ▼")

	m = send(t, m, runes("1")...)
	assert.Equal(t, listview.ColumnID, m.list.Params().Column)
	assert.Equal(t, listview.Asc, m.list.Params().Order)

	m = send(t, m, runes("o")...)
	assert.Equal(t, listview.Desc, m.list.Params().Order)
	assert.Equal(t, 25, m.list.Paginated()[0].ID)
}

func TestPageKeys(t *testing.T) {
	m := readyModel(t, sampleComments(25))

	m = send(t, m, runes("jj")...)
	m = send(t, m, runes("n")...)
	assert.Equal(t, 2, m.list.Params().Page)
	assert.Equal(t, 0, m.cursor)

	m = send(t, m, runes("nnn")...)
	assert.Equal(t, 3, m.list.Params().Page)
	assert.Len(t, m.list.Paginated(), 5)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, 2, m.list.Params().Page)

	m = send(t, m, runes("ppp")...)
	assert.Equal(t, 1, m.list.Params().Page)
}

func TestCursorStaysOnPage(t *testing.T) {
	m := readyModel(t, sampleComments(3))
	m = send(t, m, runes("kjjjjj")...)
	assert.Equal(t, 2, m.cursor)
	m = send(t, m, runes("kkkk")...)
	assert.Equal(t, 0, m.cursor)
}

func TestPageSizeCycle(t *testing.T) {
	m := readyModel(t, sampleComments(25))

	want := []listview.PageSize{15, 20, listview.All, 10}
	for _, size := range want {
		m = send(t, m, runes("+")...)
		assert.Equal(t, size, m.list.Params().PageSize)
	}

	m = readyModel(t, sampleComments(25), withPageSizes([]listview.PageSize{10, 5}))
	m = send(t, m, runes("+")...)
	assert.Equal(t, listview.PageSize(5), m.list.Params().PageSize)
	assert.Equal(t, 5, m.list.TotalPages())
}

func TestEdit_Save(t *testing.T) {
	m := readyModel(t, sampleComments(25))
	m = send(t, m, runes("j")...)
	m = send(t, m, runes("e")...)
	require.Equal(t, modeEdit, m.mode)

	id, ok := m.list.EditID()
	require.True(t, ok)
	assert.Equal(t, 2, id)
	assert.Equal(t, "name 2", m.inputs[fieldName].Value())
	assert.Equal(t, "user2@example.com", m.inputs[fieldEmail].Value())

	// typing goes to the focused field and into the draft
	m = send(t, m, runes("X")...)
	draft, ok := m.list.Draft()
	require.True(t, ok)
	assert.Contains(t, draft.Name, "X")
	assert.Contains(t, m.View(), "editing #2")

	m.inputs[fieldName].SetValue("renamed")
	m.inputs[fieldBody].SetValue("new body")
	m = send(t, m, keyEnter)

	assert.Equal(t, modeNormal, m.mode)
	assert.False(t, m.list.Editing())
	assert.Equal(t, "saved", m.status)

	got := m.list.Comments()[1]
	assert.Equal(t, comments.Comment{ID: 2, Name: "renamed", Email: "user2@example.com", Body: "new body"}, got)
	assert.Equal(t, 25, m.list.Len())
}

func TestEdit_Cancel(t *testing.T) {
	m := readyModel(t, sampleComments(5))
	before := m.list.Comments()

	m = send(t, m, keyEnter)
	require.Equal(t, modeEdit, m.mode)
	m.inputs[fieldName].SetValue("discarded")
	m = send(t, m, runes("y")...)
	m = send(t, m, keyEsc)

	assert.Equal(t, modeNormal, m.mode)
	assert.False(t, m.list.Editing())
	assert.Equal(t, before, m.list.Comments())
}

func TestEdit_FocusCycles(t *testing.T) {
	m := readyModel(t, sampleComments(5))
	m = send(t, m, runes("e")...)
	require.Equal(t, fieldName, m.focus)
	assert.True(t, m.inputs[fieldName].Focused())

	m = send(t, m, keyTab)
	assert.Equal(t, fieldEmail, m.focus)
	assert.True(t, m.inputs[fieldEmail].Focused())
	assert.False(t, m.inputs[fieldName].Focused())

	m = send(t, m, keyTab, keyTab)
	assert.Equal(t, fieldName, m.focus)

	m = send(t, m, keyShiftTab)
	assert.Equal(t, fieldBody, m.focus)
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	m := readyModel(t, sampleComments(25))

	m = send(t, m, runes("d")...)
	require.Equal(t, modeConfirmDelete, m.mode)
	assert.Contains(t, m.View(), "delete #1? y/n")

	m = send(t, m, runes("n")...)
	assert.Equal(t, modeNormal, m.mode)
	assert.Equal(t, 25, m.list.Len())

	m = send(t, m, runes("dy")...)
	assert.Equal(t, 24, m.list.Len())
	assert.Equal(t, "deleted #1", m.status)
	assert.Equal(t, 2, m.list.Paginated()[0].ID)
}

func TestDelete_LastRowMovesCursorUp(t *testing.T) {
	m := readyModel(t, sampleComments(25))
	m = send(t, m, runes("nnjjjj")...)
	require.Equal(t, 4, m.cursor)
	require.Equal(t, 25, m.list.Paginated()[4].ID)

	m = send(t, m, runes("dy")...)
	assert.Equal(t, 3, m.cursor)
	assert.Equal(t, 3, m.list.Params().Page)
}

func TestDetail(t *testing.T) {
	m := readyModel(t, sampleComments(5))
	m = send(t, m, runes("jv")...)
	require.Equal(t, modeDetail, m.mode)

	view := m.View()
	assert.Contains(t, view, "#2")
	assert.Contains(t, view, "user2@example.com")
	assert.Contains(t, view, "second line")

	m = send(t, m, keyEsc)
	assert.Equal(t, modeNormal, m.mode)
}

func TestReload_Throttled(t *testing.T) {
	calls := 0
	source := comments.FetcherFunc(func(context.Context) ([]comments.Comment, error) {
		calls++
		return sampleComments(3), nil
	})
	m := newTestModel(source, withReloadLimiter(newReloadLimiter(time.Hour)))
	m = send(t, m, loadFrom(t, m.loadCmd()), tea.WindowSizeMsg{Width: 100, Height: 30})
	require.Equal(t, 1, calls)

	updated, cmd := m.Update(runes("r")[0])
	m = updated.(model)
	require.Equal(t, listview.Loading, m.list.State())

	// ignored while a load is outstanding
	_, again := m.Update(runes("r")[0])
	assert.Nil(t, again)

	m = send(t, m, loadFrom(t, cmd))
	require.Equal(t, listview.Ready, m.list.State())
	assert.Equal(t, 2, calls)

	updated, cmd = m.Update(runes("r")[0])
	m = updated.(model)
	assert.Nil(t, cmd)
	assert.Equal(t, "reload throttled", m.status)
	assert.Equal(t, listview.Ready, m.list.State())
}

func TestReload_RetriesAfterFailure(t *testing.T) {
	fail := true
	source := comments.FetcherFunc(func(context.Context) ([]comments.Comment, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return sampleComments(2), nil
	})
	m := newTestModel(source)
	m = send(t, m, loadFrom(t, m.loadCmd()))
	require.Equal(t, listview.LoadFailed, m.list.State())

	// only retry and quit are live while failed
	m = send(t, m, runes("/")...)
	assert.Equal(t, modeNormal, m.mode)

	fail = false
	_, cmd := m.Update(runes("r")[0])
	m = send(t, m, loadFrom(t, cmd))
	assert.Equal(t, listview.Ready, m.list.State())
	assert.Equal(t, 2, m.list.Len())
}

func TestQuit(t *testing.T) {
	for _, k := range []tea.KeyMsg{keyCtrlC, runes("q")[0].(tea.KeyMsg)} {
		t.Run(k.String(), func(t *testing.T) {
			m := readyModel(t, sampleComments(3))
			_, cmd := m.Update(k)
			if cmd == nil {
				t.Fatal("expected quit command, got nil")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Errorf("expected tea.QuitMsg")
			}
			assert.Equal(t, listview.Closed, m.list.State())
			assert.Error(t, m.ctx.Err(), "quit cancels outstanding fetches")
		})
	}
}

func TestCtrlCQuitsFromEveryMode(t *testing.T) {
	m := readyModel(t, sampleComments(3))
	m = send(t, m, runes("e")...)
	require.Equal(t, modeEdit, m.mode)
	_, cmd := m.Update(keyCtrlC)
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestLateLoadAfterQuitIsIgnored(t *testing.T) {
	m := newTestModel(staticSource(sampleComments(3)))
	cmd := m.loadCmd()
	m = send(t, m, keyCtrlC)

	m = send(t, m, cmd())
	assert.Equal(t, listview.Closed, m.list.State())
	assert.Equal(t, 0, m.list.Len())
}

func TestQuitCancelsBlockingFetch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{})
	source := comments.FetcherFunc(func(ctx context.Context) ([]comments.Comment, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	m := newTestModel(source)
	cmd := m.loadCmd()

	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	<-started

	m = send(t, m, keyCtrlC)

	select {
	case msg := <-done:
		m = send(t, m, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("fetch was not canceled")
	}
	assert.Equal(t, listview.Closed, m.list.State())
	assert.NoError(t, m.list.Err())
}

func TestAlignCell(t *testing.T) {
	assert.Equal(t, "  42", alignCell("42", listview.ColumnID, 4))
	assert.Equal(t, "ab  ", alignCell("ab", listview.ColumnName, 4))
	assert.Equal(t, "abc…", alignCell("abcdefgh", listview.ColumnBody, 4))
	assert.Equal(t, "日本…", alignCell("日本語のコメント", listview.ColumnBody, 5))
}

func TestAlignCell_LongBody(t *testing.T) {
	body := strings.Repeat("lorem ipsum ", 50_000)
	start := time.Now()
	got := alignCell(body, listview.ColumnBody, 80)
	assert.Equal(t, 80, lipgloss.Width(got))
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Less(t, time.Since(start), time.Second)
}
