package ai

import (
	"github.com/cockroachdb/errors"
)

// Generation failures. Callers match them with errors.Is.
var (
	ErrEmptyMessage   = errors.New("no commit subject found in model output")
	ErrSessionTimeout = errors.New("generation timed out")
	ErrEmptyResponse  = errors.New("model returned an empty response")
	ErrBackendFailure = errors.New("AI backend failure")
)

// backendError marks err as a backend failure unless it already carries a
// more specific classification.
func backendError(err error, op string) error {
	if err == nil {
		err = errors.New("unknown error")
	}
	if errors.Is(err, ErrSessionTimeout) {
		return err
	}
	return errors.WithHint(
		errors.Mark(errors.Wrap(err, op), ErrBackendFailure),
		"check ai.provider, ai.base_url and the API key, then press r to retry",
	)
}
