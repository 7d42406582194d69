package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/icon-project/btp2/common/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lambda-emu/lambda-sdk/runner"
)

const (
	ParamFunctionName     = "functionName"
	GroupUrlFunctions     = "/2015-03-31/functions"
	GroupUrlMonitor       = "/monitor"
	UrlInvocations        = "/:" + ParamFunctionName + "/invocations"
	UrlMonitorInvocations = "/invocations"
	WsHandshakeTimeout    = time.Second * 3
)

const (
	HeaderInvocationType = "X-Amz-Invocation-Type"
	HeaderLogType        = "X-Amz-Log-Type"
	HeaderFunctionError  = "X-Amz-Function-Error"
	HeaderRequestID      = "X-Amzn-Requestid"
	HeaderErrorType      = "X-Amzn-Errortype"

	InvocationTypeRequestResponse = "RequestResponse"
	InvocationTypeEvent           = "Event"
	LogTypeNone                   = "None"
	FunctionErrorUnhandled        = "Unhandled"
)

const (
	DefaultDumpLogLevel = log.TraceLevel
	DumpLogLevelLimit   = log.InfoLevel
)

func Logger(l log.Logger) log.Logger {
	return l.WithFields(log.Fields{log.FieldKeyModule: "api"})
}

func EnsureDumpLogLevel(lv log.Level) log.Level {
	if lv < DumpLogLevelLimit {
		return DefaultDumpLogLevel
	}
	return lv
}

type Server struct {
	e      *echo.Echo
	addr   string
	runner runner.Runner
	stderr io.Writer
	hub    *InvocationHub
	u      websocket.Upgrader
	lv     log.Level
	l      log.Logger
}

// NewServer wires the invoke endpoint against the given execution engine.
// stderr is the optional side channel that captured function logs are
// written to, independent of any HTTP response.
func NewServer(addr string, r runner.Runner, stderr io.Writer, dumpLogLevel log.Level, l log.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = HttpErrorHandler
	s := &Server{
		e:      e,
		addr:   addr,
		runner: r,
		stderr: stderr,
		hub:    NewInvocationHub(),
		lv:     EnsureDumpLogLevel(dumpLogLevel),
		l:      Logger(l),
	}
	e.Use(middleware.Recover(), s.ValidateRequest)
	s.RegisterInvokeHandler(e.Group(GroupUrlFunctions))
	s.RegisterMonitorHandler(e.Group(GroupUrlMonitor))
	return s
}

func (s *Server) RegisterInvokeHandler(g *echo.Group) {
	// route-level middleware, Group.Use would register catch-all routes and
	// swallow the 405 for other methods on the path
	g.POST(UrlInvocations, s.InvokeHandler,
		middleware.BodyDump(func(c echo.Context, reqBody []byte, resBody []byte) {
			s.l.Debugf("url=%s", c.Request().RequestURI)
			s.l.Logf(s.lv, "request=%s", reqBody)
			s.l.Logf(s.lv, "response=%s", resBody)
		}))
}

// Handler exposes the HTTP surface for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start() error {
	s.l.Infoln("starting the server")
	return s.e.Start(s.addr)
}

func (s *Server) Stop() error {
	s.l.Infoln("shutting down the server")

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	return s.e.Shutdown(ctx)
}
