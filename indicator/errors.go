package indicator

import "fmt"

// InsufficientDataError reports a series shorter than the window an
// indicator needs. It aborts the indicator step of the current cycle.
type InsufficientDataError struct {
	Indicator string
	Need      int
	Have      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need %d points, have %d", e.Indicator, e.Need, e.Have)
}

func insufficient(name string, need, have int) error {
	return &InsufficientDataError{Indicator: name, Need: need, Have: have}
}
