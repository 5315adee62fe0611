package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by stores, the editor and the HTTP layer.
// Callers match with errors.Is; producers wrap with %w.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failure")
	ErrTransport        = errors.New("transport failure")
	ErrConflictOnExport = errors.New("unsupported export combination")
	ErrConflict         = errors.New("already exists")
)

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// Transport wraps err as a TransportFailure unless it already carries
// a more specific kind from the taxonomy.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrTransport) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrTransport, err)
}
