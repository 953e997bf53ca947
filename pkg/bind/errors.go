package bind

import "fmt"

// DeliveryError is raised on the tracked loop when a bound producer
// signals an error. The binding has already been torn down by the time
// the panic propagates; no further values will be cached.
//
// The policy is pass-through, not resilience: the error reaches the
// loop's panic handler (or takes the loop down when none is installed)
// so the host's own error handling sees it. There are no retries.
type DeliveryError struct {
	// Binding is the name of the binding the producer was bound to.
	Binding string

	// Err is the producer's error.
	Err error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("livebind: delivery failed on binding %q: %v", e.Binding, e.Err)
}

// Unwrap returns the producer's error for errors.Is/As support.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}
