package aggregate

import "fmt"

// AggregationError reports a walk-level failure that aborted aggregation
type AggregationError struct {
	Root string
	Err  error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("failed to aggregate %s: %v", e.Root, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}
