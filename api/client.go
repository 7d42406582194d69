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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/icon-project/btp2/common/errors"
	"github.com/icon-project/btp2/common/log"
	"github.com/labstack/echo/v4"
)

type HttpTransport struct {
	*http.Transport
	lv log.Level
	l  log.Logger
}

func (t *HttpTransport) log(rc io.ReadCloser) (io.ReadCloser, error) {
	if rc == nil {
		return nil, nil
	}
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to io.ReadAll err:%s", err.Error())
	}
	t.l.Logln(t.lv, string(b))
	return io.NopCloser(bytes.NewBuffer(b)), nil
}

func (t *HttpTransport) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	if req.Body, err = t.log(req.Body); err != nil {
		return nil, err
	}
	if resp, err = t.Transport.RoundTrip(req); err != nil {
		return nil, errors.Wrapf(err, "fail to RoundTrip err:%s", err.Error())
	}
	if resp.Body, err = t.log(resp.Body); err != nil {
		return nil, err
	}
	return resp, err
}

func NewHttpClient(lv log.Level, l log.Logger) *http.Client {
	return &http.Client{
		Transport: &HttpTransport{
			Transport: &http.Transport{},
			lv:        EnsureDumpLogLevel(lv),
			l:         l,
		},
	}
}

type Client struct {
	*http.Client
	baseUrl        string
	baseMonitorUrl string
	lv             log.Level
	l              log.Logger
}

func NewClient(url string, transportLogLevel log.Level, l log.Logger) *Client {
	l = Logger(l)
	return &Client{
		Client:         NewHttpClient(transportLogLevel, l),
		baseUrl:        url,
		baseMonitorUrl: url + GroupUrlMonitor,
		lv:             EnsureDumpLogLevel(transportLogLevel),
		l:              l,
	}
}

type InvokeOptions struct {
	InvocationType string
	LogType        string
}

type InvokeResult struct {
	StatusCode    int
	Payload       []byte
	FunctionError string
	RequestID     string
}

func (c *Client) invokeUrl(function string) string {
	return c.baseUrl + GroupUrlFunctions + fmt.Sprintf("/%s/invocations", function)
}

// Invoke calls the invoke endpoint. Non-2xx responses are decoded into
// *ErrorResponse and returned as the error. A user-level function error is
// not an error here, it is reported through InvokeResult.FunctionError.
func (c *Client) Invoke(function string, payload []byte, opts *InvokeOptions) (*InvokeResult, error) {
	req, err := http.NewRequest(http.MethodPost, c.invokeUrl(function), bytes.NewReader(payload))
	if err != nil {
		c.l.Debugf("fail to NewRequest err:%+v", err)
		return nil, err
	}
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if opts != nil {
		if len(opts.InvocationType) > 0 {
			req.Header.Set(HeaderInvocationType, opts.InvocationType)
		}
		if len(opts.LogType) > 0 {
			req.Header.Set(HeaderLogType, opts.LogType)
		}
	}
	c.l.Debugf("url=%s", req.URL)
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		er := &ErrorResponse{}
		if err = UnmarshalBody(resp.Body, er); err != nil {
			c.l.Debugf("fail to decode ErrorResponse err:%+v", err)
			return nil, errors.Errorf("server response not success, StatusCode:%d",
				resp.StatusCode)
		}
		return nil, DecodedErrorResponse(resp.StatusCode, resp.Header.Get(HeaderErrorType), er)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to io.ReadAll err:%s", err.Error())
	}
	return &InvokeResult{
		StatusCode:    resp.StatusCode,
		Payload:       b,
		FunctionError: resp.Header.Get(HeaderFunctionError),
		RequestID:     resp.Header.Get(HeaderRequestID),
	}, nil
}

type InvocationEventCallback func(ev *InvocationEvent) error

// MonitorInvocations subscribes to the server's invocation event stream
// until the context is done or the connection fails.
func (c *Client) MonitorInvocations(ctx context.Context, req *MonitorRequest, cb InvocationEventCallback) error {
	conn, err := c.wsConnect(ctx, c.baseMonitorUrl+UrlMonitorInvocations)
	if err != nil {
		return err
	}
	defer c.wsClose(conn)
	if err = c.wsHandshake(ctx, conn, req); err != nil {
		return err
	}
	return c.wsReadLoop(ctx, conn, func(b []byte) error {
		ev := &InvocationEvent{}
		if err = json.Unmarshal(b, ev); err != nil {
			return err
		}
		return cb(ev)
	})
}

func (c *Client) wsID(conn *websocket.Conn) string {
	return conn.LocalAddr().String()
}

func (c *Client) wsConnect(ctx context.Context, url string) (*websocket.Conn, error) {
	url = strings.Replace(url, "http", "ws", 1)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if err == websocket.ErrBadHandshake {
			er := &ErrorResponse{}
			if err = UnmarshalBody(resp.Body, er); err != nil {
				err = errors.Errorf("server response not success, StatusCode:%d",
					resp.StatusCode)
			} else {
				err = DecodedErrorResponse(resp.StatusCode, resp.Header.Get(HeaderErrorType), er)
			}
		}
		c.l.Debugf("fail to Dial url:%s err:%+v", url, err)
		return nil, err
	}
	c.l.Debugf("[%s]wsConnect", c.wsID(conn))
	return conn, nil
}

func (c *Client) wsHandshake(ctx context.Context, conn *websocket.Conn, req interface{}) error {
	var err error
	id := c.wsID(conn)
	if err = c.wsWrite(conn, req); err != nil {
		c.l.Debugf("[%s]fail to wsWrite err:%+v", id, err)
		return err
	}
	tctx, cancel := context.WithTimeout(ctx, WsHandshakeTimeout)
	defer cancel()
	mr := &MonitorResponse{}
	if err = c.wsRead(tctx, conn, mr); err != nil {
		c.l.Debugf("[%s]fail to wsRead err:%+v", id, err)
		return err
	}
	if !errors.Success.Equals(mr) {
		return mr
	}
	return nil
}

func (c *Client) wsClose(conn *websocket.Conn) {
	c.l.Debugf("[%s]wsClose", c.wsID(conn))
	conn.Close()
}

func (c *Client) wsRead(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	id := c.wsID(conn)
	ch := make(chan interface{}, 1)
	go func() {
		_, b, err := conn.ReadMessage()
		if err != nil {
			ch <- err
		} else {
			ch <- b
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case inf := <-ch:
		switch t := inf.(type) {
		case error:
			return t
		case []byte:
			if err := json.Unmarshal(t, v); err != nil {
				return err
			}
			c.l.Logf(c.lv, "[%s]wsRead=%s", id, t)
			return nil
		default:
			c.l.Panicln("unreachable code")
			return nil
		}
	}
}

func (c *Client) wsWrite(conn *websocket.Conn, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.l.Logf(c.lv, "[%s]wsWrite=%s", c.wsID(conn), b)
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (c *Client) wsReadLoop(ctx context.Context, conn *websocket.Conn, cb func(b []byte) error) error {
	id := c.wsID(conn)
	ech := make(chan error, 1)
	go func() {
		defer func() {
			c.l.Debugf("[%s]wsReadLoop finish", id)
		}()
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				ech <- err
				break
			}
			c.l.Logf(c.lv, "[%s]wsReadLoop=%s", id, b)
			if err = cb(b); err != nil {
				ech <- err
				break
			}
		}
	}()

	select {
	case <-ctx.Done():
		c.l.Debugf("[%s]wsReadLoop context Done", id)
		return ctx.Err()
	case err := <-ech:
		c.l.Debugf("[%s]wsReadLoop err:%+v", id, err)
		return err
	}
}

func UnmarshalBody(b io.ReadCloser, v interface{}) error {
	defer b.Close()
	if err := json.NewDecoder(b).Decode(v); err != nil {
		return err
	}
	return nil
}
