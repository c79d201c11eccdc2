package components

import "errors"

// ErrInvalidInput is wrapped by every error returned for unusable input.
var ErrInvalidInput = errors.New("components: invalid input")
