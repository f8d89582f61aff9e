package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrSerialization   = errors.New("serialization failure")
	ErrUniqueViolation = errors.New("unique constraint violation")
	ErrTimeout         = errors.New("database timeout")
)

// Classify maps driver and context errors onto the package sentinels.
// Errors it does not recognise are returned unchanged, so domain errors
// produced inside a transaction keep their identity.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrSerialization, pqErr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", ErrUniqueViolation, pqErr.Constraint)
		case "55P03", "57014":
			return fmt.Errorf("%w: %s", ErrTimeout, pqErr.Message)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return err
}

// IsUniqueViolation reports a 23505 either raw or already classified.
func IsUniqueViolation(err error) bool {
	return errors.Is(Classify(err), ErrUniqueViolation)
}
