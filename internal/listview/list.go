// Package listview holds the state of the comment list: the fetched collection, the
// view parameters and the edit buffer. Projections are recomputed from that state on
// every read; nothing is cached.
package listview

import (
	"context"
	"iter"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/surprisetalk/commentsheet/internal/comments"
)

// State is the load state of a List.
type State int

const (
	Initializing State = iota
	Loading
	Ready
	LoadFailed
	Closed
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case LoadFailed:
		return "load failed"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Loaded is the outcome of one fetch started by Start.
type Loaded struct {
	Gen      uint64
	LoadID   string
	Comments []comments.Comment
	Err      error
}

// List is the comment list state machine. It is not safe for concurrent use: every
// method must be called from the goroutine that owns the view. Only the thunk returned
// by Start may run elsewhere.
type List struct {
	fetcher comments.Fetcher
	logger  *zap.Logger

	state    State
	loading  bool
	err      error
	gen      uint64
	comments []comments.Comment
	params   Params

	editing bool
	editID  int
	draft   comments.Comment
}

// Option configures a List.
type Option func(*List)

// WithParams sets the initial view parameters.
func WithParams(p Params) Option {
	return func(l *List) { l.params = p.normalized() }
}

// New returns a List in the Initializing state reading from fetcher.
func New(fetcher comments.Fetcher, logger *zap.Logger, opts ...Option) *List {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &List{
		fetcher:  fetcher,
		logger:   logger,
		state:    Initializing,
		loading:  true,
		params:   DefaultParams(),
		comments: []comments.Comment{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start moves the list into Loading and returns the fetch to run. The fetch blocks and
// may run on any goroutine; its result must be handed back to Finish. Starting again
// supersedes an outstanding load. Any active edit is discarded.
func (l *List) Start(ctx context.Context) func() Loaded {
	if l.state == Closed {
		return func() Loaded { return Loaded{} }
	}
	l.gen++
	l.state = Loading
	l.loading = true
	l.err = nil
	l.clearEdit()

	gen := l.gen
	loadID := uuid.NewString()
	fetcher := l.fetcher
	l.logger.Info("loading comments", zap.String("load_id", loadID), zap.Uint64("gen", gen))

	return func() Loaded {
		cs, err := fetcher.FetchAll(ctx)
		return Loaded{Gen: gen, LoadID: loadID, Comments: cs, Err: err}
	}
}

// Finish applies a result produced by the thunk from Start. Results from superseded
// loads, and any result arriving after Close, are dropped; Finish reports whether the
// result was applied.
func (l *List) Finish(res Loaded) bool {
	if l.state == Closed || res.Gen == 0 || res.Gen != l.gen {
		l.logger.Debug("dropping stale comments load",
			zap.String("load_id", res.LoadID),
			zap.Uint64("gen", res.Gen),
			zap.Stringer("state", l.state),
		)
		return false
	}
	l.loading = false
	if res.Err != nil {
		l.state = LoadFailed
		l.err = res.Err
		l.comments = []comments.Comment{}
		l.logger.Error("error fetching comments",
			zap.String("load_id", res.LoadID),
			zap.Error(res.Err),
		)
	} else {
		l.state = Ready
		l.comments = slices.Clone(res.Comments)
		if l.comments == nil {
			l.comments = []comments.Comment{}
		}
		l.logger.Info("comments loaded",
			zap.String("load_id", res.LoadID),
			zap.Int("count", len(l.comments)),
		)
	}
	l.params = l.params.WithPage(l.params.Page, l.TotalPages())
	return true
}

// Load runs a full fetch synchronously.
func (l *List) Load(ctx context.Context) error {
	l.Finish(l.Start(ctx)())
	return l.err
}

// Close disposes the list. Pending loads are ignored when they finish.
func (l *List) Close() {
	if l.state == Closed {
		return
	}
	l.state = Closed
	l.loading = false
	l.clearEdit()
}

func (l *List) State() State   { return l.state }
func (l *List) Loading() bool  { return l.loading }
func (l *List) Err() error     { return l.err }
func (l *List) Params() Params { return l.params }
func (l *List) Len() int       { return len(l.comments) }

// Comments returns a copy of the collection.
func (l *List) Comments() []comments.Comment { return slices.Clone(l.comments) }

// Filtered yields the comments matching the search query.
func (l *List) Filtered() iter.Seq[comments.Comment] {
	return Filter(l.comments, l.params.Search)
}

// Sorted returns the filtered comments in sort order.
func (l *List) Sorted() []comments.Comment {
	return Sort(l.Filtered(), l.params.Column, l.params.Order)
}

// Paginated returns the rows of the current page.
func (l *List) Paginated() []comments.Comment {
	return Paginate(l.Sorted(), l.params.Page, l.params.PageSize)
}

// TotalPages counts pages of the filtered comments.
func (l *List) TotalPages() int {
	if l.params.PageSize == All {
		return 1
	}
	return TotalPages(Count(l.Filtered()), l.params.PageSize)
}

// SetSearchQuery replaces the query and returns to the first page.
func (l *List) SetSearchQuery(q string) {
	l.params = l.params.WithSearch(q)
}

// SortBy sorts by col, flipping the order when col is already the sort column.
func (l *List) SortBy(col Column) {
	l.params = l.params.WithSort(col)
}

// SetPageSize changes the rows per page and keeps the page in range.
func (l *List) SetPageSize(size PageSize) {
	p := l.params.WithPageSize(size)
	l.params = p
	l.params = p.WithPage(p.Page, l.TotalPages())
}

// NextPage advances one page unless on the last.
func (l *List) NextPage() {
	if l.params.Page < l.TotalPages() {
		l.params = l.params.WithPage(l.params.Page+1, l.TotalPages())
	}
}

// PrevPage goes back one page unless on the first. From beyond the last page (after
// deletes) it lands on the last page.
func (l *List) PrevPage() {
	if l.params.Page > 1 {
		l.params = l.params.WithPage(l.params.Page-1, l.TotalPages())
	}
}

// StartEdit copies the first comment with id into a fresh edit buffer, replacing any
// active edit. Unknown ids leave the buffer untouched and return false.
func (l *List) StartEdit(id int) bool {
	i := l.indexOf(id)
	if i < 0 {
		return false
	}
	l.editing = true
	l.editID = id
	l.draft = l.comments[i]
	return true
}

func (l *List) Editing() bool { return l.editing }

// EditID returns the id under edit.
func (l *List) EditID() (int, bool) {
	if !l.editing {
		return 0, false
	}
	return l.editID, true
}

// Draft returns the edit buffer.
func (l *List) Draft() (comments.Comment, bool) {
	if !l.editing {
		return comments.Comment{}, false
	}
	return l.draft, true
}

// SetDraft replaces the edit buffer. Without an active edit it does nothing.
func (l *List) SetDraft(c comments.Comment) {
	if l.editing {
		l.draft = c
	}
}

// SaveEdit replaces the comment under edit with the draft, id included, and ends the
// edit. It reports whether a comment was replaced.
func (l *List) SaveEdit() bool {
	if !l.editing {
		return false
	}
	saved := false
	if i := l.indexOf(l.editID); i >= 0 {
		l.comments[i] = l.draft
		saved = true
	}
	l.clearEdit()
	return saved
}

// CancelEdit drops the edit buffer.
func (l *List) CancelEdit() {
	l.clearEdit()
}

// DeleteComment removes the first comment with id. The page is left as is, so the
// current page may come up short or empty.
func (l *List) DeleteComment(id int) bool {
	i := l.indexOf(id)
	if i < 0 {
		return false
	}
	l.comments = slices.Delete(l.comments, i, i+1)
	return true
}

func (l *List) indexOf(id int) int {
	return slices.IndexFunc(l.comments, func(c comments.Comment) bool { return c.ID == id })
}

func (l *List) clearEdit() {
	l.editing = false
	l.editID = 0
	l.draft = comments.Comment{}
}
