// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package resilience holds the error taxonomy shared by the HTTP handlers
// and the timeout guard used around external calls.
package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrorResponse represents the standard error response format across all APIs
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorCode represents standard error codes used across the service
type ErrorCode string

const (
	// Client errors (4xx)
	ErrorCodeBadRequest ErrorCode = "BAD_REQUEST"
	ErrorCodeNotFound   ErrorCode = "NOT_FOUND"

	// Server errors (5xx)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeTimeout       ErrorCode = "TIMEOUT"
)

// ServiceError represents an error with additional context for proper handling
type ServiceError struct {
	Message    string
	Code       ErrorCode
	StatusCode int
	Internal   error
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Internal
}

// ToErrorResponse converts a ServiceError to an ErrorResponse
func (e *ServiceError) ToErrorResponse(requestID string) ErrorResponse {
	return ErrorResponse{
		Error:     e.Message,
		Code:      string(e.Code),
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}
}

// NewServiceError creates a new ServiceError with the given parameters
func NewServiceError(message string, code ErrorCode, statusCode int, internal error) *ServiceError {
	return &ServiceError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeBadRequest, http.StatusBadRequest, internal)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeNotFound, http.StatusNotFound, internal)
}

// NewInternalError creates a new internal server error
func NewInternalError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeInternalError, http.StatusInternalServerError, internal)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeTimeout, http.StatusGatewayTimeout, internal)
}

// AsServiceError reports whether err wraps a ServiceError and stores it in
// target.
func AsServiceError(err error, target **ServiceError) bool {
	if err == nil {
		return false
	}
	return errors.As(err, target)
}

type clientErrorRule struct {
	target error
	code   ErrorCode
	status int
}

// ErrorHandler maps errors onto ServiceErrors and writes them as JSON.
type ErrorHandler struct {
	logger       *zap.Logger
	clientErrors []clientErrorRule
}

// NewErrorHandler creates a new error handler with the given logger
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{logger: logger}
}

// RegisterBadRequest marks errors matching target (errors.Is) as client
// errors. Their message is returned to the caller unchanged.
func (eh *ErrorHandler) RegisterBadRequest(targets ...error) *ErrorHandler {
	for _, target := range targets {
		eh.clientErrors = append(eh.clientErrors, clientErrorRule{
			target: target,
			code:   ErrorCodeBadRequest,
			status: http.StatusBadRequest,
		})
	}
	return eh
}

// WrapError converts err into a ServiceError. Registered client errors keep
// their message; anything else is logged and replaced by a generic message.
func (eh *ErrorHandler) WrapError(err error, operation string) *ServiceError {
	if err == nil {
		return nil
	}

	var serviceErr *ServiceError
	if AsServiceError(err, &serviceErr) {
		return serviceErr
	}

	if eh == nil {
		return NewInternalError(fmt.Sprintf("An error occurred while %s. Please try again.", operation), err)
	}

	for _, rule := range eh.clientErrors {
		if errors.Is(err, rule.target) {
			return NewServiceError(err.Error(), rule.code, rule.status, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		eh.logger.Warn("Operation timed out",
			zap.String("operation", operation),
			zap.Error(err))
		return NewTimeoutError("The operation is taking longer than expected. Please try again.", err)
	}

	eh.logger.Error("Error occurred during operation",
		zap.String("operation", operation),
		zap.Error(err))

	return NewInternalError(fmt.Sprintf("An error occurred while %s. Please try again.", operation), err)
}

// WriteErrorResponse writes an error response to an HTTP response writer
func (eh *ErrorHandler) WriteErrorResponse(w http.ResponseWriter, err error, operation, requestID string) {
	serviceErr := eh.WrapError(err, operation)
	if serviceErr == nil {
		serviceErr = NewInternalError("An error occurred while processing request", nil)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(serviceErr.StatusCode)

	if err := json.NewEncoder(w).Encode(serviceErr.ToErrorResponse(requestID)); err != nil && eh != nil {
		eh.logger.Error("Failed to encode error response", zap.Error(err))
	}
}
