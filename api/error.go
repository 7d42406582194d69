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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error schema of the emulated service. The body is
// {"Type": ..., "Message": ...} and the exception name travels in the
// x-amzn-errortype header.
const (
	ErrorTypeUser         = "User"
	ErrorTypeService      = "Service"
	ErrorTypeLocalService = "LocalService"
)

const (
	ErrorInvalidRequestContent = "InvalidRequestContent"
	ErrorNotImplemented        = "NotImplemented"
	ErrorResourceNotFound      = "ResourceNotFound"
	ErrorService               = "Service"
	ErrorPathNotFoundLocally   = "PathNotFoundLocally"
	ErrorMethodNotAllowed      = "MethodNotAllowedLocally"
)

type ErrorResponse struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`

	statusCode int
	errorType  string
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("errorType:%s, type:%s, message:%s", e.errorType, e.Type, e.Message)
}

func (e *ErrorResponse) StatusCode() int {
	return e.statusCode
}

func (e *ErrorResponse) ErrorType() string {
	return e.errorType
}

func (e *ErrorResponse) WriteTo(c echo.Context) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return ServiceResponse(c, b,
		Headers(
			HeaderErrorType, e.errorType,
			echo.HeaderContentType, echo.MIMEApplicationJSON),
		e.statusCode)
}

func newErrorResponse(statusCode int, errorType, failureType, message string) *ErrorResponse {
	return &ErrorResponse{
		Type:       failureType,
		Message:    message,
		statusCode: statusCode,
		errorType:  errorType,
	}
}

// DecodedErrorResponse rebuilds an ErrorResponse from a received HTTP
// response, used by the client.
func DecodedErrorResponse(statusCode int, errorType string, body *ErrorResponse) *ErrorResponse {
	return newErrorResponse(statusCode, errorType, body.Type, body.Message)
}

func InvalidRequestContent(message string) *ErrorResponse {
	return newErrorResponse(http.StatusBadRequest,
		ErrorInvalidRequestContent, ErrorTypeUser, message)
}

func NotImplementedLocally(message string) *ErrorResponse {
	return newErrorResponse(http.StatusNotImplemented,
		ErrorNotImplemented, ErrorTypeLocalService, message)
}

func ResourceNotFound(function string) *ErrorResponse {
	return newErrorResponse(http.StatusNotFound,
		ErrorResourceNotFound, ErrorTypeUser,
		fmt.Sprintf("Function not found: arn:aws:lambda:us-west-2:012345678901:function:%s", function))
}

func GenericServiceException() *ErrorResponse {
	return newErrorResponse(http.StatusInternalServerError,
		ErrorService, ErrorTypeService, "ServiceException")
}

func GenericPathNotFound() *ErrorResponse {
	return newErrorResponse(http.StatusNotFound,
		ErrorPathNotFoundLocally, ErrorTypeLocalService, "PathNotFoundException")
}

func GenericMethodNotAllowed() *ErrorResponse {
	return newErrorResponse(http.StatusMethodNotAllowed,
		ErrorMethodNotAllowed, ErrorTypeLocalService, "MethodNotAllowedException")
}

func HttpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	er, ok := err.(*ErrorResponse)
	if !ok {
		if he, hok := err.(*echo.HTTPError); hok {
			switch he.Code {
			case http.StatusNotFound:
				er = GenericPathNotFound()
			case http.StatusMethodNotAllowed:
				er = GenericMethodNotAllowed()
			default:
				er = GenericServiceException()
			}
		} else {
			er = GenericServiceException()
		}
	}
	if werr := er.WriteTo(c); werr != nil {
		c.Echo().Logger.Error(werr)
	}
}
