// Package widget holds the two status cards. Each widget owns its lifecycle:
// Mount starts the data sources, Unmount tears them down synchronously, and
// View exposes a card only once data has arrived.
package widget

import "errors"

var (
	ErrAlreadyMounted = errors.New("widget: already mounted")
	ErrClosed         = errors.New("widget: closed")
	ErrMissingSubject = errors.New("widget: subject is required")
	ErrMissingSource  = errors.New("widget: data source is required")
)

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateDisplaying
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateDisplaying:
		return "displaying"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
