package model

import (
	"errors"
	"fmt"
)

// ErrValidation tags request validation failures so the HTTP layer can map
// them to 400. Anything not wrapping it is treated as an internal failure.
var ErrValidation = errors.New("invalid request")

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
