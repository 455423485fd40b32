// Package comments fetches comment records from a remote REST resource.
package comments

import (
	"context"
	"errors"
)

// Comment is one record of the remote collection.
type Comment struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Body  string `json:"body"`
}

// ErrFetchFailed covers every way a fetch can fail: transport, status and decoding.
var ErrFetchFailed = errors.New("fetch comments failed")

// Fetcher yields the full collection or an error wrapping ErrFetchFailed.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]Comment, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]Comment, error)

func (f FetcherFunc) FetchAll(ctx context.Context) ([]Comment, error) { return f(ctx) }
