/*
Copyright (c) 2025-present, Nudibranches Technologies SAS.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package gotrino

import (
	"fmt"
)

var (
	ErrInvalidCatalog      = &ClientError{message: "invalid catalog"}
	ErrCatalogNotFound     = &ClientError{message: "catalog not found"}
	ErrInvalidSchema       = &ClientError{message: "invalid schema"}
	ErrSchemaNotFound      = &ClientError{message: "schema not found"}
	ErrSchemaAlreadyExists = &ClientError{message: "schema already exists"}
	ErrInvalidSource       = &ClientError{message: "invalid source"}
	ErrInvalidUser         = &ClientError{message: "invalid user"}
	ErrInvalidProperties   = &ClientError{message: "invalid properties"}
	ErrTableNotFound       = &ClientError{message: "table not found"}
	ErrTableAlreadyExists  = &ClientError{message: "table already exists"}
	ErrEmptyAuth           = &ClientError{message: "invalid empty auth"}
	ErrBasicAuthWithHTTP   = &ClientError{message: "basic auth can not be used with http"}
	ErrInconsistentData    = &ClientError{message: "inconsistent data"}
	ErrEmptyData           = &ClientError{message: "empty data"}
)

// ClientError is raised when the client rejects a request or a
// response before it ever reaches, or after it leaves, the server.
type ClientError struct {
	message string
	wrapErr error
}

func (e *ClientError) Error() string {
	if e.wrapErr != nil {
		return e.message + ": " + e.wrapErr.Error()
	}
	return e.message
}

func (e *ClientError) Unwrap() error {
	return e.wrapErr
}

// InternalError is raised when the client hits a state the protocol
// does not allow.
type InternalError struct {
	message string
}

func internalErrorf(format string, args ...any) *InternalError {
	return &InternalError{message: fmt.Sprintf(format, args...)}
}

func (e *InternalError) Error() string {
	return "internal error: " + e.message
}

// InvalidTablePropertyError carries the server's description of the
// rejected property.
type InvalidTablePropertyError struct {
	Message string
}

func (e *InvalidTablePropertyError) Error() string {
	return "invalid table property: " + e.Message
}

// DuplicateHeaderError names a response header that was repeated. The
// response-header projection reads only the first value of each header
// and does not return this error.
type DuplicateHeaderError struct {
	Header string
}

func (e *DuplicateHeaderError) Error() string {
	return "duplicate header: " + e.Header
}

// ForbiddenError is raised when the server denies the query
// (errorCode 4).
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Message
}

// TransportError wraps a failure below the HTTP layer.
type TransportError struct {
	wrapErr error
}

func (e *TransportError) Error() string {
	return "http error, reason: " + e.wrapErr.Error()
}

func (e *TransportError) Unwrap() error {
	return e.wrapErr
}

// HTTPError is raised on a non-2xx statement or segment response. Body
// holds whatever the server sent back, verbatim.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http not ok, code: %d, reason: %s", e.StatusCode, e.Body)
}

// MaxAttemptError records a retry budget and the last error seen. The
// client's 503 retry loop does not return it: once the attempts run
// out, the last HTTPError is returned as is.
type MaxAttemptError struct {
	Attempts int
	LastErr  error
}

func (e *MaxAttemptError) Error() string {
	return fmt.Sprintf("reach max attempt: %d", e.Attempts)
}

func (e *MaxAttemptError) Unwrap() error {
	return e.LastErr
}

// InvalidHostError is raised when the configured host does not parse
// into a base URL.
type InvalidHostError struct {
	Host string
}

func (e *InvalidHostError) Error() string {
	return "invalid host: " + e.Host
}

// QueryFailedError carries the server's error object. errorFromQueryError
// does not return it: an errorName outside its table becomes an
// InternalError.
type QueryFailedError struct {
	QueryError QueryError
}

func (e *QueryFailedError) Error() string {
	return "query error, reason: " + e.QueryError.Message
}

// errorFromQueryError maps the server's errorName to the client
// taxonomy. errorCode 4 is handled by the caller (ForbiddenError), so
// the mapping here is purely name-driven.
func errorFromQueryError(qe QueryError) error {
	switch qe.ErrorName {
	case "CATALOG_NOT_FOUND":
		return ErrCatalogNotFound
	case "MISSING_CATALOG_NAME":
		return ErrInvalidCatalog
	case "SCHEMA_NOT_FOUND":
		return ErrSchemaNotFound
	case "MISSING_SCHEMA_NAME":
		return ErrInvalidSchema
	case "SCHEMA_ALREADY_EXISTS":
		return ErrSchemaAlreadyExists
	case "INVALID_TABLE_PROPERTY":
		return &InvalidTablePropertyError{Message: qe.Message}
	case "TABLE_NOT_FOUND":
		return ErrTableNotFound
	case "TABLE_ALREADY_EXISTS":
		return ErrTableAlreadyExists
	default:
		return internalErrorf("%s - %s", qe.ErrorName, qe.Message)
	}
}
