package api

import (
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/lambda-emu/lambda-sdk/runner"
)

func TestInvokeSync(t *testing.T) {
	r := respondWith(`{"statusCode":200,"body":"hello"}`)
	r.calls = make(chan string, 1)
	s := server(r, nil)
	rec := invoke(s, "foo", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, `{"statusCode":200,"body":"hello"}`, rec.Body.String())
	assert.Empty(t, rec.Header().Get(HeaderFunctionError))
	// absent body is normalized to an empty JSON object
	assert.Equal(t, "foo|{}", waitFor(t, r.calls))
}

func TestInvokeSyncPayload(t *testing.T) {
	r := respondWith(`"ok"`)
	r.calls = make(chan string, 1)
	s := server(r, nil)
	rec := invoke(s, "foo", `{"key":"value"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `foo|{"key":"value"}`, waitFor(t, r.calls))
}

func TestInvokeAsync(t *testing.T) {
	r := respondWith(`"ok"`)
	r.calls = make(chan string, 1)
	s := server(r, nil)
	rec := invoke(s, "foo", "", map[string]string{
		HeaderInvocationType: InvocationTypeEvent,
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
	requestID := rec.Header().Get(HeaderRequestID)
	if _, err := uuid.Parse(requestID); err != nil {
		assert.FailNow(t, "x-amzn-requestid is not a uuid", requestID)
	}
	// the invocation continues detached from the completed request
	assert.Equal(t, "foo|{}", waitFor(t, r.calls))
}

func TestInvokeFunctionNotFound(t *testing.T) {
	s := server(&testRunner{
		invoke: func(function, payload string, stdout, stderr io.Writer) error {
			return &runner.FunctionNotFound{Function: function}
		},
	}, nil)
	rec := invoke(s, "missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrorResourceNotFound, rec.Header().Get(HeaderErrorType))
	er := decodeErrorResponse(t, rec)
	assert.Equal(t, ErrorTypeUser, er.Type)
	assert.Contains(t, er.Message, "missing")
}

func TestInvokeUserError(t *testing.T) {
	s := server(respondWith(`{"errorMessage":"boom","errorType":"Error"}`), nil)
	rec := invoke(s, "foo", "", nil)
	// the transport succeeded even though the function failed
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, FunctionErrorUnhandled, rec.Header().Get(HeaderFunctionError))
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, `{"errorMessage":"boom","errorType":"Error"}`, rec.Body.String())
}

func TestInvokeLogsToStderr(t *testing.T) {
	stderr := &bytes.Buffer{}
	s := server(respondWith("log line one\nlog line two\n\"ok\""), stderr)
	rec := invoke(s, "foo", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"ok"`, rec.Body.String())
	assert.Equal(t, "log line one\nlog line two", stderr.String())
}
