// File: protocol/httpmsg/method.go
// Author: momentics <momentics@gmail.com>

package httpmsg

// Method is a supported request method.
type Method int

const (
	MethodUnknown Method = iota
	MethodGet
	MethodPost
	MethodDelete
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// ParseMethod maps a request-line token to a Method.
func ParseMethod(s string) Method {
	switch s {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	case "DELETE":
		return MethodDelete
	default:
		return MethodUnknown
	}
}
