package skyroute

import (
	"errors"
	"fmt"

	"github.com/nerrad567/skyroute/internal/errkind"
)

// Error categories. Every error returned by this package, and every error a
// handler failure is reported with, matches one of them via errors.Is.
var (
	ErrConfiguration = errkind.ErrConfiguration
	ErrConnection    = errkind.ErrConnection
	ErrDecode        = errkind.ErrDecode
	ErrInvocation    = errkind.ErrInvocation
)

var (
	// ErrClosed is returned by operations on a closed Router.
	ErrClosed = errors.New("skyroute: router closed")

	// ErrNoTransport is returned by New when Options.Transport is nil.
	ErrNoTransport = fmt.Errorf("%w: skyroute: transport is required", errkind.ErrConfiguration)
)
