package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/textproto"

	"github.com/go-playground/validator/v10"
	"github.com/icon-project/btp2/common/errors"
	"github.com/labstack/echo/v4"
)

type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{
		v: validator.New(),
	}
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.v.Struct(i); err != nil {
		return errors.Wrapf(err, "fail to Validate err:%s", err.Error())
	}
	return nil
}

// ValidateRequest runs before any route handler as a universal pre-check,
// mirroring the emulated service's request rules. First failure wins.
// Reading the body consumes it, so it is restored for the handler.
func (s *Server) ValidateRequest(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		body, err := ReadAndRestoreBody(req)
		if err != nil {
			s.l.Debugf("fail to read request body err:%+v", err)
			return err
		}
		if len(body) == 0 {
			body = []byte("{}")
		}
		if !json.Valid(body) {
			s.l.Debugf("request body was not json")
			return InvalidRequestContent(
				"Could not parse request body into json: No JSON object could be decoded")
		}
		if len(c.QueryParams()) > 0 {
			s.l.Debugf("query parameters are in the request but not supported")
			return InvalidRequestContent("Query Parameters are not supported")
		}
		if logType := HeaderOrDefault(req.Header, HeaderLogType, LogTypeNone); logType != LogTypeNone {
			s.l.Debugf("log-type: %s is not supported. None is only supported.", logType)
			return NotImplementedLocally(
				fmt.Sprintf("log-type: %s is not supported. None is only supported.", logType))
		}
		invocationType := HeaderOrDefault(req.Header, HeaderInvocationType, InvocationTypeRequestResponse)
		if invocationType != InvocationTypeEvent && invocationType != InvocationTypeRequestResponse {
			s.l.Warnf("invocation-type: %s is not supported. Supported types: Event, RequestResponse.",
				invocationType)
			return NotImplementedLocally(
				fmt.Sprintf("invocation-type: %s is not supported. Supported types: Event, RequestResponse.",
					invocationType))
		}
		return next(c)
	}
}

// HeaderOrDefault resolves a header case-insensitively, falling back only
// when it is absent. A present header with an empty value stays empty so it
// is rejected like any other unsupported value.
func HeaderOrDefault(h http.Header, name, dflt string) string {
	if vs, ok := h[textproto.CanonicalMIMEHeaderKey(name)]; ok && len(vs) > 0 {
		return vs[0]
	}
	return dflt
}

func ReadAndRestoreBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	b, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to io.ReadAll err:%s", err.Error())
	}
	req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(b))
	return b, nil
}
