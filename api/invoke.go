/*
 * Copyright 2024 Lambda Emu Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lambda-emu/lambda-sdk/runner"
)

// InvokeHandler handles POST /2015-03-31/functions/:functionName/invocations.
// It is the single decision point between synchronous and asynchronous
// dispatch, selected by the X-Amz-Invocation-Type header.
func (s *Server) InvokeHandler(c echo.Context) error {
	function := c.Param(ParamFunctionName)
	body, err := ReadAndRestoreBody(c.Request())
	if err != nil {
		s.l.Debugf("fail to read request body err:%+v", err)
		return err
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	payload := string(body)
	invocationType := HeaderOrDefault(c.Request().Header, HeaderInvocationType, InvocationTypeRequestResponse)
	if invocationType == InvocationTypeEvent {
		return s.invokeAsync(c, function, payload)
	}
	return s.invokeSync(c, function, payload)
}

// invokeAsync starts the invocation on a detached goroutine and replies 202
// immediately. The spawned work is fire-and-forget: it is never joined or
// cancelled, and its failure is visible only through logs and the stderr
// side channel, never to the HTTP caller.
func (s *Server) invokeAsync(c echo.Context, function, payload string) error {
	requestID := uuid.NewString()
	s.hub.Publish(NewInvocationEvent(requestID, function, InvocationTypeEvent, InvocationAccepted))
	go func() {
		outcome, err := s.dispatch(function, payload)
		if err != nil {
			s.l.Debugf("async invocation failed: %s, requestId=%s err:%+v", function, requestID, err)
			s.hub.Publish(NewInvocationEvent(requestID, function, InvocationTypeEvent, InvocationFailed))
			return
		}
		status := InvocationCompleted
		if outcome.IsUserError {
			status = InvocationFailed
		}
		s.hub.Publish(NewInvocationEvent(requestID, function, InvocationTypeEvent, status))
	}()
	s.l.Debugf("async invocation: %s, requestId=%s", function, requestID)
	return ServiceResponse(c, nil,
		Headers(HeaderRequestID, requestID),
		http.StatusAccepted)
}

// invokeSync blocks the request's goroutine until the execution engine
// returns, then classifies the captured output. A user error still yields
// HTTP 200, signalled through the x-amz-function-error header to match the
// emulated service.
func (s *Server) invokeSync(c echo.Context, function, payload string) error {
	requestID := uuid.NewString()
	s.hub.Publish(NewInvocationEvent(requestID, function, InvocationTypeRequestResponse, InvocationAccepted))
	outcome, err := s.dispatch(function, payload)
	if err != nil {
		s.hub.Publish(NewInvocationEvent(requestID, function, InvocationTypeRequestResponse, InvocationFailed))
		if runner.IsFunctionNotFound(err) {
			s.l.Debugf("%s was not found to invoke", function)
			return ResourceNotFound(function)
		}
		s.l.Errorf("fail to Invoke function=%s err:%+v", function, err)
		return err
	}
	if outcome.IsUserError {
		s.l.Debugf("function error response: %s", outcome.Response)
		s.hub.Publish(NewInvocationEvent(requestID, function, InvocationTypeRequestResponse, InvocationFailed))
		return ServiceResponse(c, []byte(outcome.Response),
			Headers(
				echo.HeaderContentType, echo.MIMEApplicationJSON,
				HeaderFunctionError, FunctionErrorUnhandled),
			http.StatusOK)
	}
	s.l.Debugf("function returned success: %s", outcome.Response)
	s.hub.Publish(NewInvocationEvent(requestID, function, InvocationTypeRequestResponse, InvocationCompleted))
	return ServiceResponse(c, []byte(outcome.Response),
		Headers(echo.HeaderContentType, echo.MIMEApplicationJSON),
		http.StatusOK)
}

type InvocationOutcome struct {
	Response    string
	Logs        string
	IsUserError bool
}

// dispatch runs the execution engine with a fresh stdout buffer and parses
// what it captured. Captured logs are always copied to the stderr side
// channel when present, regardless of the invocation outcome.
func (s *Server) dispatch(function, payload string) (*InvocationOutcome, error) {
	stdout := &bytes.Buffer{}
	if err := s.runner.Invoke(function, payload, stdout, s.stderr); err != nil {
		return nil, err
	}
	response, logs, isUserError := runner.ParseOutput(stdout.Bytes())
	if s.stderr != nil && len(logs) > 0 {
		if _, err := io.WriteString(s.stderr, logs); err != nil {
			s.l.Debugf("fail to write function logs err:%+v", err)
		}
	}
	return &InvocationOutcome{
		Response:    response,
		Logs:        logs,
		IsUserError: isUserError,
	}, nil
}
