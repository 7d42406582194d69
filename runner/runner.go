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

package runner

import (
	"fmt"
	"io"

	"github.com/icon-project/btp2/common/log"
)

// Runner is the execution engine the invoke service dispatches to.
// Invoke runs the named function with the given JSON payload, writing the
// function result and anything the function printed to stdout, and runtime
// logs to stderr. It returns *FunctionNotFound when the name is unknown.
type Runner interface {
	Invoke(function string, payload string, stdout io.Writer, stderr io.Writer) error
}

func Logger(l log.Logger) log.Logger {
	return l.WithFields(log.Fields{log.FieldKeyModule: "runner"})
}

type FunctionNotFound struct {
	Function string
}

func (e *FunctionNotFound) Error() string {
	return fmt.Sprintf("Function(%s) not found", e.Function)
}

func IsFunctionNotFound(err error) bool {
	_, ok := err.(*FunctionNotFound)
	return ok
}
