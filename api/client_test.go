package api

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/icon-project/btp2/common/log"
	"github.com/stretchr/testify/assert"
)

func testServerAndClient(t *testing.T, s *Server) (*httptest.Server, *Client) {
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, NewClient(ts.URL, log.TraceLevel, log.GlobalLogger())
}

func TestClientInvoke(t *testing.T) {
	_, c := testServerAndClient(t, server(respondWith(`{"result":"ok"}`), nil))
	r, err := c.Invoke("foo", []byte(`{"key":"value"}`), nil)
	assert.NoError(t, err)
	assert.Equal(t, 200, r.StatusCode)
	assert.Equal(t, `{"result":"ok"}`, string(r.Payload))
	assert.Empty(t, r.FunctionError)
}

func TestClientInvokeAsync(t *testing.T) {
	r := respondWith(`"ok"`)
	r.calls = make(chan string, 1)
	_, c := testServerAndClient(t, server(r, nil))
	res, err := c.Invoke("foo", nil, &InvokeOptions{
		InvocationType: InvocationTypeEvent,
	})
	assert.NoError(t, err)
	assert.Equal(t, 202, res.StatusCode)
	assert.NotEmpty(t, res.RequestID)
	assert.Empty(t, res.Payload)
	assert.Equal(t, "foo|{}", waitFor(t, r.calls))
}

func TestClientInvokeFunctionError(t *testing.T) {
	_, c := testServerAndClient(t, server(respondWith(`{"errorMessage":"boom"}`), nil))
	r, err := c.Invoke("foo", nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, 200, r.StatusCode)
	assert.Equal(t, FunctionErrorUnhandled, r.FunctionError)
	assert.Equal(t, `{"errorMessage":"boom"}`, string(r.Payload))
}

func TestClientInvokeErrorResponse(t *testing.T) {
	_, c := testServerAndClient(t, server(respondWith(`"ok"`), nil))
	_, err := c.Invoke("foo", nil, &InvokeOptions{
		LogType: "Tail",
	})
	assert.Error(t, err)
	er, ok := err.(*ErrorResponse)
	if !ok {
		assert.FailNow(t, "expected *ErrorResponse", err)
	}
	assert.Equal(t, 501, er.StatusCode())
	assert.Equal(t, ErrorNotImplemented, er.ErrorType())
	assert.Equal(t, ErrorTypeLocalService, er.Type)
	assert.Contains(t, er.Message, "Tail")
}

func TestClientMonitorInvocations(t *testing.T) {
	s := server(respondWith(`"ok"`), nil)
	_, c := testServerAndClient(t, s)

	events := make(chan *InvocationEvent, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- c.MonitorInvocations(ctx, &MonitorRequest{}, func(ev *InvocationEvent) error {
			events <- ev
			return nil
		})
	}()

	// the subscription is registered once the handshake completes
	subscribed := func() bool {
		s.hub.mtx.RLock()
		defer s.hub.mtx.RUnlock()
		return len(s.hub.subs) > 0
	}
	for i := 0; !subscribed(); i++ {
		if i > 100 {
			assert.FailNow(t, "timeout waiting for subscription")
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, err := c.Invoke("foo", nil, nil)
	assert.NoError(t, err)

	for _, status := range []InvocationStatus{InvocationAccepted, InvocationCompleted} {
		select {
		case ev := <-events:
			assert.Equal(t, status, ev.Status)
			assert.Equal(t, "foo", ev.Function)
		case <-time.After(time.Second):
			assert.FailNow(t, "timeout waiting for event", status)
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		assert.FailNow(t, "timeout waiting for monitor to stop")
	}
}
