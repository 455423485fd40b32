package listview

import (
	"cmp"
	"iter"
	"slices"
	"strings"

	"github.com/surprisetalk/commentsheet/internal/comments"
)

// Filter yields, in collection order, the comments whose name, email or body contains
// q case-insensitively. An empty q matches everything. The sequence can be ranged
// over any number of times.
func Filter(c []comments.Comment, q string) iter.Seq[comments.Comment] {
	needle := strings.ToLower(q)
	return func(yield func(comments.Comment) bool) {
		for _, cm := range c {
			if !matches(cm, needle) {
				continue
			}
			if !yield(cm) {
				return
			}
		}
	}
}

func matches(c comments.Comment, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Name), needle) ||
		strings.Contains(strings.ToLower(c.Email), needle) ||
		strings.Contains(strings.ToLower(c.Body), needle)
}

// Sort collects seq and orders it stably by col. Text columns compare byte-wise, so
// upper case sorts before lower case. Equal keys keep their order from seq in both
// directions.
func Sort(seq iter.Seq[comments.Comment], col Column, ord Order) []comments.Comment {
	out := slices.Collect(seq)
	if out == nil {
		out = []comments.Comment{}
	}
	compare := compareBy(col)
	if ord == Desc {
		slices.SortStableFunc(out, func(a, b comments.Comment) int { return compare(b, a) })
	} else {
		slices.SortStableFunc(out, compare)
	}
	return out
}

func compareBy(col Column) func(a, b comments.Comment) int {
	switch col {
	case ColumnName:
		return func(a, b comments.Comment) int { return strings.Compare(a.Name, b.Name) }
	case ColumnEmail:
		return func(a, b comments.Comment) int { return strings.Compare(a.Email, b.Email) }
	case ColumnBody:
		return func(a, b comments.Comment) int { return strings.Compare(a.Body, b.Body) }
	default:
		return func(a, b comments.Comment) int { return cmp.Compare(a.ID, b.ID) }
	}
}

// Paginate returns page (1-based) of sorted. All returns sorted whole; pages past the
// end are empty.
func Paginate(sorted []comments.Comment, page int, size PageSize) []comments.Comment {
	if size == All {
		return sorted
	}
	if page < 1 || size < 0 || page-1 >= TotalPages(len(sorted), size) {
		return []comments.Comment{}
	}
	start := (page - 1) * int(size)
	if start >= len(sorted) {
		return []comments.Comment{}
	}
	end := min(start+int(size), len(sorted))
	return sorted[start:end]
}

// TotalPages is ceil(n/size), at least 1. All is always one page.
func TotalPages(n int, size PageSize) int {
	if size <= All {
		return 1
	}
	pages := n / int(size)
	if n%int(size) != 0 {
		pages++
	}
	return max(pages, 1)
}

// Count returns the length of seq.
func Count[T any](seq iter.Seq[T]) int {
	n := 0
	for range seq {
		n++
	}
	return n
}
