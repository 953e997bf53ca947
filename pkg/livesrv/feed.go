package livesrv

import "github.com/vango-dev/livebind/pkg/stream"

// Feed is a named producer offered to every connection. The value type
// is erased so feeds of different types can share one server; use
// NewFeed to build one from a typed source.
type Feed struct {
	Name   string
	Source stream.Source[any]
}

// NewFeed wraps a typed source as a Feed. Values must be JSON
// marshalable, since they are pushed to clients verbatim.
func NewFeed[T any](name string, src stream.Source[T]) Feed {
	return Feed{
		Name:   name,
		Source: stream.Map(src, func(v T) any { return v }),
	}
}

// Frame is the wire format pushed to clients: one frame per delivered
// value, with a per-connection sequence number.
type Frame struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
	Seq   uint64 `json:"seq"`
}
