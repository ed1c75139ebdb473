package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moffa90/go-fwflash/download"
	"github.com/moffa90/go-fwflash/flasher"
	"github.com/moffa90/go-fwflash/manifest"
	"github.com/moffa90/go-fwflash/session"
)

// NotFoundError is returned for unknown sessions, parts or jobs.
type NotFoundError struct {
	What string
	ID   string
}

func (e *NotFoundError) Error() string {
	return e.What + " not found: " + e.ID
}

// InvalidInputError wraps a malformed request.
type InvalidInputError struct {
	Err error
}

func (e *InvalidInputError) Error() string { return e.Err.Error() }

func (e *InvalidInputError) Unwrap() error { return e.Err }

func invalidInput(err error) error {
	return &InvalidInputError{Err: err}
}

// statusCode maps an error to its HTTP status.
func statusCode(err error) int {
	var nfe *NotFoundError
	if errors.As(err, &nfe) {
		return http.StatusNotFound
	}
	var iie *InvalidInputError
	if errors.As(err, &iie) {
		return http.StatusBadRequest
	}
	var me *manifest.MetadataError
	if errors.As(err, &me) {
		return http.StatusBadRequest
	}
	if errors.Is(err, flasher.ErrBusy) || errors.Is(err, session.ErrNotConnected) || errors.Is(err, session.ErrNoMetadata) {
		return http.StatusConflict
	}
	if errors.Is(err, flasher.ErrNotFlashable) {
		return http.StatusUnprocessableEntity
	}
	var pfe *download.PartialFailureError
	if errors.As(err, &pfe) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error     string   `json:"error"`
	Conflicts []string `json:"conflicts,omitempty"`
	Parts     []string `json:"parts,omitempty"`
}

// errorHandler renders the last handler error as JSON.
func errorHandler(gc *gin.Context) {
	gc.Next()
	if len(gc.Errors) == 0 || gc.Writer.Written() {
		return
	}
	err := gc.Errors.Last().Err

	body := errorBody{Error: err.Error()}
	var nfe *flasher.NotFlashableError
	if errors.As(err, &nfe) {
		body.Conflicts = nfe.Conflicts
		body.Parts = nfe.Unresolved
	}
	var pfe *download.PartialFailureError
	if errors.As(err, &pfe) {
		for _, f := range pfe.Failures {
			body.Parts = append(body.Parts, f.Filename)
		}
	}
	gc.JSON(statusCode(err), body)
}
