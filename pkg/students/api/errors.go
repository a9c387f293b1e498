package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/tendant/student-records/pkg/students"
)

// ErrorResponse is the body of every non-validation error
type ErrorResponse struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

// ValidationErrorResponse carries one message per invalid field
type ValidationErrorResponse struct {
	Timestamp string            `json:"timestamp"`
	Status    int               `json:"status"`
	Errors    map[string]string `json:"errors"`
}

// formError marks a request body that could not be parsed at all.
type formError struct {
	err error
}

func (e *formError) Error() string { return "invalid form: " + e.err.Error() }
func (e *formError) Unwrap() error { return e.err }

func timestamp() string {
	return time.Now().Format("2006-01-02T15:04:05.000000")
}

// writeError maps a service error onto a status code and error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *students.ValidationError
	var ferr *formError
	var maxBytes *http.MaxBytesError

	switch {
	case errors.As(err, &verr):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ValidationErrorResponse{
			Timestamp: timestamp(),
			Status:    http.StatusBadRequest,
			Errors:    verr.Fields,
		})
	case errors.As(err, &maxBytes):
		writeErrorStatus(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
	case errors.As(err, &ferr):
		writeErrorStatus(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, students.ErrStudentNotFound):
		writeErrorStatus(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, students.ErrContactExists):
		writeErrorStatus(w, r, http.StatusBadRequest, err.Error())
	default:
		writeErrorStatus(w, r, http.StatusInternalServerError, "An unexpected error occurred: "+err.Error())
	}
}

func writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{
		Timestamp: timestamp(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
	})
}
