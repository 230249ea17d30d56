// File: protocol/httpmsg/status.go
// Author: momentics <momentics@gmail.com>

package httpmsg

// Status is an HTTP status code.
type Status int

const (
	StatusOK                  Status = 200
	StatusCreated             Status = 201
	StatusNoContent           Status = 204
	StatusMovedPermanently    Status = 301
	StatusFound               Status = 302
	StatusSeeOther            Status = 303
	StatusNotModified         Status = 304
	StatusTemporaryRedirect   Status = 307
	StatusPermanentRedirect   Status = 308
	StatusBadRequest          Status = 400
	StatusForbidden           Status = 403
	StatusNotFound            Status = 404
	StatusMethodNotAllowed    Status = 405
	StatusRequestTimeout      Status = 408
	StatusPayloadTooLarge     Status = 413
	StatusInternalServerError Status = 500
	StatusNotImplemented      Status = 501
	StatusBadGateway          Status = 502
	StatusServiceUnavailable  Status = 503
	StatusGatewayTimeout      Status = 504
)

var reasons = map[Status]string{
	StatusOK:                  "OK",
	StatusCreated:             "Created",
	StatusNoContent:           "No Content",
	StatusMovedPermanently:    "Moved Permanently",
	StatusFound:               "Found",
	StatusSeeOther:            "See Other",
	StatusNotModified:         "Not Modified",
	StatusTemporaryRedirect:   "Temporary Redirect",
	StatusPermanentRedirect:   "Permanent Redirect",
	StatusBadRequest:          "Bad Request",
	StatusForbidden:           "Forbidden",
	StatusNotFound:            "Not Found",
	StatusMethodNotAllowed:    "Method Not Allowed",
	StatusRequestTimeout:      "Request Timeout",
	StatusPayloadTooLarge:     "Payload Too Large",
	StatusInternalServerError: "Internal Server Error",
	StatusNotImplemented:      "Not Implemented",
	StatusBadGateway:          "Bad Gateway",
	StatusServiceUnavailable:  "Service Unavailable",
	StatusGatewayTimeout:      "Gateway Timeout",
}

// StatusFromInt validates a numeric status against the known set.
func StatusFromInt(code int) (Status, bool) {
	s := Status(code)
	_, ok := reasons[s]
	return s, ok
}

// Reason returns the reason phrase, empty for unknown codes.
func (s Status) Reason() string { return reasons[s] }

// IsError reports 4xx and 5xx codes.
func (s Status) IsError() bool { return s >= 400 }
