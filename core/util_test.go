package core_test

import "github.com/momentics/hioload-httpd/protocol/httpmsg"

func buildResponse(body []byte) httpmsg.Response {
	return httpmsg.NewBuilder().Status(httpmsg.StatusOK).Body(body, "text/plain").Build()
}
