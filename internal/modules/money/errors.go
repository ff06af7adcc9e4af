package money

import "fmt"

// InvalidTermsError reports a lease term outside the accepted range.
type InvalidTermsError struct {
	Field  string
	Reason string
}

func (e *InvalidTermsError) Error() string {
	return fmt.Sprintf("invalid terms: %s %s", e.Field, e.Reason)
}
