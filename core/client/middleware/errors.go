package middleware

import "errors"

// ErrRetryExhausted is returned once every retry attempt failed. The last
// provider error is wrapped alongside it.
var ErrRetryExhausted = errors.New("aigoflow: all retry attempts exhausted")
