package services

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
)

var validate = validator.New()

// validateInput runs struct tags and folds field errors into one
// ErrValidation message.
func validateInput(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(ErrValidation, err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return errors.Wrap(ErrValidation, strings.Join(msgs, "; "))
}

// CacheInvalidator drops cached responses that depend on a user's scores.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
	InvalidateAll(ctx context.Context) error
}

// PointsRecorder receives point deltas for the rolling points board.
type PointsRecorder interface {
	Add(ctx context.Context, userID string, points int) error
}
