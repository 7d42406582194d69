package runner

import (
	"encoding/json"
	"strings"
)

// The function may have written to stdout directly before the runtime printed
// the result, so only the last line of stdout is the response and everything
// before it is logs.
func ParseOutput(stdout []byte) (response string, logs string, isUserError bool) {
	data := strings.TrimRight(string(stdout), "\n")
	if i := strings.LastIndexByte(data, '\n'); i >= 0 {
		logs, response = data[:i], data[i+1:]
	} else {
		response = data
	}
	response = strings.TrimSpace(response)
	return response, logs, IsUserErrorResponse(response)
}

// IsUserErrorResponse reports whether the response is the runtime's error
// envelope, a JSON object carrying errorMessage and nothing besides
// errorType and stackTrace.
func IsUserErrorResponse(response string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(response), &m); err != nil {
		return false
	}
	if _, ok := m["errorMessage"]; !ok {
		return false
	}
	for k := range m {
		switch k {
		case "errorMessage", "errorType", "stackTrace":
		default:
			return false
		}
	}
	return true
}
