package service

import (
	"context"
	"errors"

	"github.com/BuzzLyutic/ptask/internal/model"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindCorruptData       Kind = "corrupt_data"
	KindBusy              Kind = "busy"
	KindIO                Kind = "io"
	KindInternal          Kind = "internal"
)

// Failure is the caller-facing shape of an error.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
}

// Describe classifies err. A nil error yields the zero Failure.
func Describe(err error) Failure {
	if err == nil {
		return Failure{}
	}
	f := Failure{Message: err.Error()}

	switch {
	case errors.Is(err, model.ErrValidation):
		f.Kind = KindValidation
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			f.Field, f.Value = ve.Field, ve.Value
		}
	case errors.Is(err, model.ErrNotFound):
		f.Kind = KindNotFound
		var nf *model.NotFoundError
		if errors.As(err, &nf) {
			f.Field, f.Value = "id", nf.ID
		}
	case errors.Is(err, model.ErrInvalidTransition):
		f.Kind = KindInvalidTransition
		var te *model.TransitionError
		if errors.As(err, &te) {
			f.Field, f.Value = "status", string(te.To)
		}
	case errors.Is(err, model.ErrCorruptData):
		f.Kind = KindCorruptData
	case errors.Is(err, model.ErrBusy), errors.Is(err, context.DeadlineExceeded):
		f.Kind = KindBusy
	case errors.Is(err, model.ErrIO):
		f.Kind = KindIO
	default:
		f.Kind = KindInternal
	}
	return f
}
