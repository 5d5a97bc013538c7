package timeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyInput is returned when a full scope is requested for a batch
	// without a single usable event. No layout is produced.
	ErrEmptyInput = errors.New("timeline: no events to derive a scope from")

	// ErrInvalidInterval matches every *IntervalError.
	ErrInvalidInterval = errors.New("timeline: planned start is after planned end")

	// ErrUnknownMode is raised (as a panic) when layout is asked for a mode
	// other than FULL or DAY.
	ErrUnknownMode = errors.New("timeline: unknown layout mode")

	ErrNotRendered      = errors.New("timeline: nothing has been rendered yet")
	ErrUnknownPlacement = errors.New("timeline: unknown placement id")
)

// IntervalError reports a single event whose planned start lies after its
// planned end. The event is skipped; the rest of the layout proceeds.
type IntervalError struct {
	EventID string
	Start   time.Time
	End     time.Time
}

func (e *IntervalError) Error() string {
	return fmt.Sprintf("timeline: event %q starts at %s after it ends at %s",
		e.EventID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

func (e *IntervalError) Is(target error) bool {
	return target == ErrInvalidInterval
}
