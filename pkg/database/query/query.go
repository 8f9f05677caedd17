package query

import (
	"errors"
)

var (
	ErrQueryNotSupported = errors.New("the requested query option is not supported")
)

type SupportedOptions byte

const (
	CanLimitResults SupportedOptions = 1 << iota
	CanSortBy
	CanQueryByCursor
)

// QueryOptions is the resolved set of options for a paged query
type QueryOptions struct {
	Supported SupportedOptions

	SortBy Ordering
	Limit  uint64
	Cursor Cursor
}

type Option func(*QueryOptions) error

func (qo *QueryOptions) supports(capability SupportedOptions) bool {
	return qo.Supported&capability == capability
}

func (qo *QueryOptions) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(qo); err != nil {
			return err
		}
	}
	return nil
}

func WithDirection(val Ordering) Option {
	return func(qo *QueryOptions) error {
		if !qo.supports(CanSortBy) {
			return ErrQueryNotSupported
		}
		qo.SortBy = val
		return nil
	}
}

func WithLimit(val uint64) Option {
	return func(qo *QueryOptions) error {
		if !qo.supports(CanLimitResults) {
			return ErrQueryNotSupported
		}
		qo.Limit = val
		return nil
	}
}

func WithCursor(val []byte) Option {
	return func(qo *QueryOptions) error {
		if !qo.supports(CanQueryByCursor) {
			return ErrQueryNotSupported
		}
		qo.Cursor = val
		return nil
	}
}

// DefaultPaginationHandlerWithLimit resolves opts for an ascending, id
// paged query. maxLimit is both the default page size and its upper bound.
func DefaultPaginationHandlerWithLimit(maxLimit uint64, opts ...Option) (*QueryOptions, error) {
	req := QueryOptions{
		Limit:     maxLimit,
		SortBy:    Ascending,
		Supported: CanLimitResults | CanSortBy | CanQueryByCursor,
	}
	if err := req.Apply(opts...); err != nil {
		return nil, ErrQueryNotSupported
	}

	if req.Limit > maxLimit {
		return nil, ErrQueryNotSupported
	}
	if len(req.Cursor) > 0 && len(req.Cursor) != cursorSize {
		return nil, ErrQueryNotSupported
	}

	return &req, nil
}
