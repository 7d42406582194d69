package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRequestInvalidJson(t *testing.T) {
	r := &testRunner{calls: make(chan string, 1)}
	s := server(r, nil)
	rec := invoke(s, "foo", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorInvalidRequestContent, rec.Header().Get(HeaderErrorType))
	er := decodeErrorResponse(t, rec)
	assert.Equal(t, ErrorTypeUser, er.Type)
	assert.Contains(t, er.Message, "Could not parse request body into json")
	// never reaches dispatch
	assert.Empty(t, r.calls)
}

func TestValidateRequestQueryParams(t *testing.T) {
	r := &testRunner{calls: make(chan string, 1)}
	s := server(r, nil)
	rec := request(s, http.MethodPost,
		GroupUrlFunctions+"/foo/invocations?a=1", `{"valid":"json"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	er := decodeErrorResponse(t, rec)
	assert.Equal(t, "Query Parameters are not supported", er.Message)
	assert.Empty(t, r.calls)
}

func TestValidateRequestLogType(t *testing.T) {
	s := server(&testRunner{}, nil)
	rec := invoke(s, "foo", "{}", map[string]string{
		HeaderLogType: "Tail",
	})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, ErrorNotImplemented, rec.Header().Get(HeaderErrorType))
	er := decodeErrorResponse(t, rec)
	assert.Equal(t, ErrorTypeLocalService, er.Type)
	assert.Equal(t, "log-type: Tail is not supported. None is only supported.", er.Message)

	rec = invoke(s, "foo", "{}", map[string]string{
		HeaderLogType: LogTypeNone,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateRequestInvocationType(t *testing.T) {
	s := server(&testRunner{}, nil)
	rec := invoke(s, "foo", "{}", map[string]string{
		HeaderInvocationType: "DryRun",
	})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	er := decodeErrorResponse(t, rec)
	assert.Equal(t, "invocation-type: DryRun is not supported. Supported types: Event, RequestResponse.",
		er.Message)

	for _, it := range []string{InvocationTypeRequestResponse, InvocationTypeEvent} {
		rec = invoke(s, "foo", "{}", map[string]string{
			HeaderInvocationType: it,
		})
		assert.True(t, rec.Code/100 == 2, "invocationType=%s code=%d", it, rec.Code)
	}
}

func TestValidateRequestEmptyLogType(t *testing.T) {
	// a present header with an empty value is not the same as no header
	s := server(&testRunner{}, nil)
	rec := invoke(s, "foo", "{}", map[string]string{
		HeaderLogType: "",
	})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	er := decodeErrorResponse(t, rec)
	assert.Equal(t, "log-type:  is not supported. None is only supported.", er.Message)
}

func TestValidateRequestHeaderCaseInsensitive(t *testing.T) {
	s := server(&testRunner{}, nil)
	rec := invoke(s, "foo", "{}", map[string]string{
		"x-amz-log-type": "Tail",
	})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = invoke(s, "foo", "{}", map[string]string{
		"X-AMZ-LOG-TYPE": LogTypeNone,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateRequestIdempotent(t *testing.T) {
	s := server(&testRunner{}, nil)
	first := invoke(s, "foo", "{not json", nil)
	second := invoke(s, "foo", "{not json", nil)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestValidateRequestBeforeRouting(t *testing.T) {
	// the validator is a universal pre-check, a bad body on an unmatched
	// path is rejected before the path itself is
	s := server(&testRunner{}, nil)
	rec := request(s, http.MethodPost, "/no/such/path", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorInvalidRequestContent, rec.Header().Get(HeaderErrorType))
}
