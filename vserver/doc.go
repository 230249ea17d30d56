// File: vserver/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package vserver selects the virtual server for a connection and routes a
// parsed request to a static response or a CGI invocation.
package vserver
