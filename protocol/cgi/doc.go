// File: protocol/cgi/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package cgi holds the CGI/1.1 value layer: meta-variable construction
// for a request and parsing of a script's document response.
package cgi
