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
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/icon-project/btp2/common/errors"
	"github.com/labstack/echo/v4"
)

type InvocationStatus string

const (
	InvocationAccepted  InvocationStatus = "accepted"
	InvocationCompleted InvocationStatus = "completed"
	InvocationFailed    InvocationStatus = "failed"
)

// InvocationEvent is a pure side-channel notification of invocation
// lifecycle transitions. Nothing is stored and missed events are not
// retransmitted.
type InvocationEvent struct {
	RequestID      string           `json:"requestId"`
	Function       string           `json:"function"`
	InvocationType string           `json:"invocationType"`
	Status         InvocationStatus `json:"status"`
	At             time.Time        `json:"at"`
}

func NewInvocationEvent(requestID, function, invocationType string, status InvocationStatus) *InvocationEvent {
	return &InvocationEvent{
		RequestID:      requestID,
		Function:       function,
		InvocationType: invocationType,
		Status:         status,
		At:             time.Now(),
	}
}

type MonitorRequest struct {
	Functions []string `json:"functions,omitempty" validate:"omitempty,dive,min=1"`
}

// MonitorResponse acknowledges the websocket handshake.
type MonitorResponse struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message,omitempty"`
}

func (r *MonitorResponse) Error() string {
	return r.Message
}

func (r *MonitorResponse) ErrorCode() errors.Code {
	return r.Code
}

const subscriptionBuffer = 16

type InvocationSubscription struct {
	C      chan *InvocationEvent
	filter map[string]struct{}
}

func (s *InvocationSubscription) matches(ev *InvocationEvent) bool {
	if len(s.filter) == 0 {
		return true
	}
	_, ok := s.filter[ev.Function]
	return ok
}

type InvocationHub struct {
	mtx  sync.RWMutex
	subs map[*InvocationSubscription]struct{}
}

func NewInvocationHub() *InvocationHub {
	return &InvocationHub{
		subs: make(map[*InvocationSubscription]struct{}),
	}
}

func (h *InvocationHub) Subscribe(functions ...string) *InvocationSubscription {
	sub := &InvocationSubscription{
		C: make(chan *InvocationEvent, subscriptionBuffer),
	}
	if len(functions) > 0 {
		sub.filter = make(map[string]struct{})
		for _, f := range functions {
			sub.filter[f] = struct{}{}
		}
	}
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.subs[sub] = struct{}{}
	return sub
}

func (h *InvocationHub) Unsubscribe(sub *InvocationSubscription) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.C)
	}
}

// Publish never blocks a dispatching goroutine, a full subscription simply
// misses the event.
func (h *InvocationHub) Publish(ev *InvocationEvent) {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	for sub := range h.subs {
		if !sub.matches(ev) {
			continue
		}
		select {
		case sub.C <- ev:
		default:
		}
	}
}

func (s *Server) wsID(conn *websocket.Conn) string {
	return conn.RemoteAddr().String()
}

func (s *Server) wsConnect(c echo.Context) (*websocket.Conn, error) {
	conn, err := s.u.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.l.Debugf("fail to Upgrade err:%+v", err)
		return nil, err
	}
	s.l.Debugf("[%s]wsConnect", s.wsID(conn))
	return conn, nil
}

func (s *Server) wsHandshake(conn *websocket.Conn, req interface{}, onSuccess func() error) error {
	var err error
	id := s.wsID(conn)
	ctx, cancel := context.WithTimeout(context.Background(), WsHandshakeTimeout)
	defer func() {
		cancel()
		mr := &MonitorResponse{
			Code: errors.Success,
		}
		if err != nil {
			mr.Code = errors.UnknownError
			mr.Message = err.Error()
			if ec, ok := errors.CoderOf(err); ok {
				mr.Code = ec.ErrorCode()
			}
		}
		if err = s.wsWrite(conn, mr); err != nil {
			s.l.Debugf("[%s]fail to wsWrite err:%+v", id, err)
		}
	}()
	if err = s.wsRead(ctx, conn, req); err != nil {
		s.l.Debugf("[%s]fail to wsRead err:%+v", id, err)
		return err
	}
	err = onSuccess()
	return err
}

func (s *Server) wsClose(conn *websocket.Conn) {
	s.l.Debugf("[%s]wsClose", s.wsID(conn))
	conn.Close()
}

func (s *Server) wsRead(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	id := s.wsID(conn)
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
			s.l.Logf(s.lv, "[%s]wsRead=%s", id, t)
			return nil
		default:
			s.l.Panicln("unreachable code")
			return nil
		}
	}
}

func (s *Server) wsWrite(conn *websocket.Conn, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.l.Logf(s.lv, "[%s]wsWrite=%s", s.wsID(conn), b)
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) wsReadLoop(ctx context.Context, conn *websocket.Conn, cb func(b []byte) error) error {
	id := s.wsID(conn)
	ech := make(chan error, 1)
	go func() {
		defer func() {
			s.l.Debugf("[%s]wsReadLoop finish", id)
		}()
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				ech <- err
				break
			}
			s.l.Logf(s.lv, "[%s]wsReadLoop=%s", id, b)
			if err = cb(b); err != nil {
				ech <- err
				break
			}
		}
	}()

	select {
	case <-ctx.Done():
		s.l.Debugf("[%s]wsReadLoop context Done", id)
		return ctx.Err()
	case err := <-ech:
		s.l.Debugf("[%s]wsReadLoop err:%+v", id, err)
		return err
	}
}

func (s *Server) RegisterMonitorHandler(g *echo.Group) {
	g.GET(UrlMonitorInvocations, func(c echo.Context) error {
		conn, err := s.wsConnect(c)
		if err != nil {
			return err
		}
		defer s.wsClose(conn)
		id := s.wsID(conn)
		req := &MonitorRequest{}
		var sub *InvocationSubscription
		onSuccessHandshake := func() error {
			if err = c.Validate(req); err != nil {
				s.l.Debugf("[%s]fail to Validate err:%+v", id, err)
				return err
			}
			sub = s.hub.Subscribe(req.Functions...)
			return nil
		}
		if err = s.wsHandshake(conn, req, onSuccessHandshake); err != nil {
			s.l.Debugf("[%s]fail to wsHandshake err:%+v", id, err)
			return nil
		}
		defer s.hub.Unsubscribe(sub)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			defer cancel()
			_ = s.wsReadLoop(ctx, conn, func(b []byte) error {
				return nil
			})
		}()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-sub.C:
				if !ok {
					return nil
				}
				if err = s.wsWrite(conn, ev); err != nil {
					s.l.Debugf("[%s]fail to wsWrite err:%+v", id, err)
					return nil
				}
			}
		}
	})
}
