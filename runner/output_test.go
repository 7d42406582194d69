package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOutput(t *testing.T) {
	args := []struct {
		name        string
		stdout      string
		response    string
		logs        string
		isUserError bool
	}{
		{
			name:     "ResponseOnly",
			stdout:   `{"result":"ok"}`,
			response: `{"result":"ok"}`,
		},
		{
			name:     "ResponseWithTrailingNewline",
			stdout:   "{\"result\":\"ok\"}\n",
			response: `{"result":"ok"}`,
		},
		{
			name:     "LogsBeforeResponse",
			stdout:   "START RequestId\nprocessing\n{\"result\":\"ok\"}\n",
			response: `{"result":"ok"}`,
			logs:     "START RequestId\nprocessing",
		},
		{
			name:        "UserErrorEnvelope",
			stdout:      `{"errorMessage":"division by zero","errorType":"ZeroDivisionError","stackTrace":[]}`,
			response:    `{"errorMessage":"division by zero","errorType":"ZeroDivisionError","stackTrace":[]}`,
			isUserError: true,
		},
		{
			name:        "UserErrorAfterLogs",
			stdout:      "some log line\n{\"errorMessage\":\"boom\"}",
			response:    `{"errorMessage":"boom"}`,
			logs:        "some log line",
			isUserError: true,
		},
		{
			name:     "ErrorMessageWithExtraKeys",
			stdout:   `{"errorMessage":"boom","result":"partial"}`,
			response: `{"errorMessage":"boom","result":"partial"}`,
		},
		{
			name:     "Empty",
			stdout:   "",
			response: "",
		},
		{
			name:     "NonJsonResponse",
			stdout:   "not json at all",
			response: "not json at all",
		},
	}
	for _, arg := range args {
		t.Run(arg.name, func(t *testing.T) {
			response, logs, isUserError := ParseOutput([]byte(arg.stdout))
			assert.Equal(t, arg.response, response)
			assert.Equal(t, arg.logs, logs)
			assert.Equal(t, arg.isUserError, isUserError)
		})
	}
}

func TestIsUserErrorResponse(t *testing.T) {
	assert.True(t, IsUserErrorResponse(`{"errorMessage":"boom"}`))
	assert.True(t, IsUserErrorResponse(`{"errorMessage":"boom","errorType":"Error","stackTrace":["l1"]}`))
	assert.False(t, IsUserErrorResponse(`{"errorType":"Error"}`))
	assert.False(t, IsUserErrorResponse(`{"result":"ok"}`))
	assert.False(t, IsUserErrorResponse(`"errorMessage"`))
	assert.False(t, IsUserErrorResponse(`null`))
	assert.False(t, IsUserErrorResponse(``))
}
