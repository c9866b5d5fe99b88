package processor

import (
	"errors"
	"fmt"
)

// GatewayError is a processor-side failure. Code carries the processor's
// own error code when one was supplied.
type GatewayError struct {
	Code    string
	Message string
	// CannotPay: the destination account is not fully onboarded and cannot
	// receive funds.
	CannotPay bool
	// Transient: processor unavailability rather than a request problem.
	// Distinguished in logs and alerts; the state outcome is the same.
	Transient bool
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("gateway error: %s", e.Message)
}

// AsGatewayError unwraps err into a GatewayError if it is one.
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
