package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ServiceResponse is the single construction path for every outbound
// response. Headers are merged through http.Header, which canonicalizes
// keys, so lookups and overrides are case-insensitive. A nil or empty body
// produces an empty response entity.
func ServiceResponse(c echo.Context, body []byte, headers http.Header, statusCode int) error {
	res := c.Response()
	for k, vs := range headers {
		for _, v := range vs {
			res.Header().Set(k, v)
		}
	}
	res.WriteHeader(statusCode)
	if len(body) == 0 {
		return nil
	}
	_, err := res.Write(body)
	return err
}

func Headers(kv ...string) http.Header {
	h := make(http.Header, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}
