package listview

import (
	"fmt"
	"strconv"
	"strings"
)

// Column is a sortable field of a comment.
type Column string

const (
	ColumnID    Column = "id"
	ColumnName  Column = "name"
	ColumnEmail Column = "email"
	ColumnBody  Column = "body"
)

// Columns lists the sortable columns in display order.
var Columns = []Column{ColumnID, ColumnName, ColumnEmail, ColumnBody}

// Valid reports whether c is one of Columns.
func (c Column) Valid() bool {
	switch c {
	case ColumnID, ColumnName, ColumnEmail, ColumnBody:
		return true
	}
	return false
}

// ParseColumn accepts a column name in any case.
func ParseColumn(s string) (Column, error) {
	c := Column(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown sort column %q", s)
	}
	return c, nil
}

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Flip returns the opposite direction.
func (o Order) Flip() Order {
	if o == Asc {
		return Desc
	}
	return Asc
}

// ParseOrder accepts "asc" or "desc" in any case.
func ParseOrder(s string) (Order, error) {
	switch o := Order(strings.ToLower(strings.TrimSpace(s))); o {
	case Asc, Desc:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// PageSize is a positive row count or All.
type PageSize int

// All puts every row on a single page.
const All PageSize = 0

// PageSizeOptions are the sizes offered by the page size selector.
var PageSizeOptions = []PageSize{10, 15, 20, All}

func (p PageSize) String() string {
	if p == All {
		return "all"
	}
	return strconv.Itoa(int(p))
}

// Valid reports whether p is All or positive.
func (p PageSize) Valid() bool { return p >= 0 }

// ParsePageSize accepts a positive integer or "all".
func ParsePageSize(s string) (PageSize, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return All, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid page size %q: want a positive integer or \"all\"", s)
	}
	return PageSize(n), nil
}

// NextPageSize returns the option after cur in options, wrapping around. A size not
// in options moves to the first option.
func NextPageSize(options []PageSize, cur PageSize) PageSize {
	if len(options) == 0 {
		return cur
	}
	for i, o := range options {
		if o == cur {
			return options[(i+1)%len(options)]
		}
	}
	return options[0]
}

// Params are the view parameters. Values are replaced, never mutated in place: every
// With method returns an updated copy.
type Params struct {
	Search   string
	Column   Column
	Order    Order
	Page     int
	PageSize PageSize
}

// DefaultParams sorts by id ascending, ten rows per page, first page, no search.
func DefaultParams() Params {
	return Params{
		Column:   ColumnID,
		Order:    Asc,
		Page:     1,
		PageSize: 10,
	}
}

// WithSearch replaces the query and goes back to the first page.
func (p Params) WithSearch(q string) Params {
	p.Search = q
	p.Page = 1
	return p
}

// WithSort flips the order when col is already the sort column, otherwise sorts
// ascending by col. The page is kept.
func (p Params) WithSort(col Column) Params {
	if !col.Valid() {
		return p
	}
	if p.Column == col {
		p.Order = p.Order.Flip()
		return p
	}
	p.Column = col
	p.Order = Asc
	return p
}

// WithPage sets the page, clamped to [1, total].
func (p Params) WithPage(page, total int) Params {
	p.Page = clampPage(page, total)
	return p
}

// WithPageSize replaces the page size; invalid sizes are ignored.
func (p Params) WithPageSize(size PageSize) Params {
	if size.Valid() {
		p.PageSize = size
	}
	return p
}

func (p Params) normalized() Params {
	if !p.Column.Valid() {
		p.Column = ColumnID
	}
	if p.Order != Asc && p.Order != Desc {
		p.Order = Asc
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if !p.PageSize.Valid() {
		p.PageSize = 10
	}
	return p
}

func clampPage(page, total int) int {
	if total < 1 {
		total = 1
	}
	if page > total {
		page = total
	}
	if page < 1 {
		page = 1
	}
	return page
}
