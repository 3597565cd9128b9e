package topic

import (
	"fmt"

	"github.com/nerrad567/skyroute/internal/errkind"
)

var (
	// ErrEmpty is returned for an empty topic or pattern.
	ErrEmpty = fmt.Errorf("%w: topic: cannot be empty", errkind.ErrConfiguration)

	// ErrInvalidPattern is returned when a wildcard is misplaced, e.g. "a/#/b" or "a+/b".
	ErrInvalidPattern = fmt.Errorf("%w: topic: invalid pattern", errkind.ErrConfiguration)

	// ErrWildcardInTopic is returned when a publish topic contains "+" or "#".
	ErrWildcardInTopic = fmt.Errorf("%w: topic: wildcards are not allowed in publish topics", errkind.ErrConfiguration)
)
