// Package httpmsg
// Author: momentics <momentics@gmail.com>
//
// Immutable HTTP/1.1 request and response values, status codes, the
// request-line and header-field validator, and the response serializer.
package httpmsg
