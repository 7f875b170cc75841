package models

import "errors"

var ErrNotFound = errors.New("requested resource not found")
var ErrForbidden = errors.New("user does not have permission to access this resource")
var ErrConflict = errors.New("request is no longer available")
var ErrInvalidToken = errors.New("token not found or expired")
var ErrInvalidCredentials = errors.New("invalid credentials") // email or password provided does not match database record
var ErrEmailTaken = errors.New("email already registered")
var ErrValidation = errors.New("validation failed")
var ErrWorkerBusy = errors.New("worker has active jobs")

// ErrInvalidTransition indicates the request is not in a state the attempted
// lifecycle action can start from.
var ErrInvalidTransition = errors.New("request status does not allow this action")

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Message string `json:"message"`
}
