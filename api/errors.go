// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package api

import (
	"fmt"
	"net/http"

	"github.com/go-core-stack/iothrottle/errors"
)

var errSizeImmutable = errors.New("body must not change the device size")

func (s *Server) logError(r *http.Request, err error) {
	s.logger.Error(err.Error(), "method", r.Method, "uri", r.URL.RequestURI())
}

func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, status int, message any) {
	data := envelope{"error": message}

	err := s.writeJSON(w, status, data, nil)
	if err != nil {
		s.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (s *Server) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	s.logError(r, err)

	message := "the server encountered a problem and could not process your request"
	s.errorResponse(w, r, http.StatusInternalServerError, message)
}

func (s *Server) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "the requested resource could not be found"
	s.errorResponse(w, r, http.StatusNotFound, message)
}

func (s *Server) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	message := fmt.Sprintf("the %s method is not supported for this resource", r.Method)
	s.errorResponse(w, r, http.StatusMethodNotAllowed, message)
}

func (s *Server) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	s.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

// invalidThrottleResponse reports a throttle config that was rejected,
// along with the reason code
func (s *Server) invalidThrottleResponse(w http.ResponseWriter, r *http.Request, err error) {
	message := map[string]string{
		"code":   errors.GetErrCode(err).String(),
		"reason": err.Error(),
	}
	s.errorResponse(w, r, http.StatusUnprocessableEntity, message)
}

func (s *Server) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request) {
	message := "rate limit exceeded"
	s.errorResponse(w, r, http.StatusTooManyRequests, message)
}

// deviceErrorResponse maps the coded errors of the device manager to
// a response
func (s *Server) deviceErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.IsNotFound(err):
		s.notFoundResponse(w, r)
	case errors.IsInvalidConfig(err):
		s.invalidThrottleResponse(w, r, err)
	default:
		s.serverErrorResponse(w, r, err)
	}
}
