package handlers

import (
	"net/http"

	apperrors "github.com/3leaps/issgate/internal/errors"
)

// httpErrorResponder converts handler errors into HTTP responses. Tests
// can swap it to observe errors without decoding real envelopes.
var httpErrorResponder = defaultHTTPErrorResponder

func defaultHTTPErrorResponder(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

// SetHTTPErrorResponder replaces the error responder. A nil responder
// restores the default.
func SetHTTPErrorResponder(f func(w http.ResponseWriter, r *http.Request, err error)) {
	if f == nil {
		httpErrorResponder = defaultHTTPErrorResponder
		return
	}
	httpErrorResponder = f
}

// ResetHTTPErrorResponder restores the default responder.
func ResetHTTPErrorResponder() {
	httpErrorResponder = defaultHTTPErrorResponder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
