package store

import "log/slog"

// Option configures a Conn, a MongoConn or a record.
type Option func(o *option)

type option struct {
	logger *slog.Logger
}

// WithLogger sets the logger that receives diagnostics for failed operations
// and, at debug level, the statements being executed.
func WithLogger(logger *slog.Logger) Option {
	return func(o *option) {
		o.logger = logger
	}
}

func createOption(options []Option) *option {
	opt := &option{}
	for _, op := range options {
		op(opt)
	}

	if opt.logger == nil {
		opt.logger = slog.Default()
	}

	return opt
}

type QueryOption func(o *queryOption)

type queryOption struct {
	Limit  int
	Offset int64
	Sorter []string
}

func createQueryOption(options []QueryOption) *queryOption {
	opt := &queryOption{}
	for _, op := range options {
		op(opt)
	}

	return opt
}

// WithLimit returns a QueryOption that sets the limit for the
// number of rows to return.
func WithLimit(limit int) QueryOption {
	return func(o *queryOption) {
		o.Limit = limit
	}
}

// WithOffset returns a QueryOption that sets the offset for the
// rows returned.
func WithOffset(offset int64) QueryOption {
	return func(o *queryOption) {
		o.Offset = offset
	}
}

// WithSorter returns a QueryOption that sets the sorting order for the query.
// The sorter parameter is a variadic slice of field names to sort by, prefixed by "-" for descending order, and prefixed by "+" for ascending order.
//
// example:
//
//	WithSorter("-name", "+age")
func WithSorter(sorter ...string) QueryOption {
	return func(o *queryOption) {
		o.Sorter = sorter
	}
}
