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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/icon-project/btp2/common/errors"
	"github.com/icon-project/btp2/common/log"
)

const (
	EnvFunctionName = "AWS_LAMBDA_FUNCTION_NAME"
	EnvEvent        = "LAMBDA_EVENT"
)

// Command describes how to run one function as a local process.
type Command struct {
	Command string            `json:"command" validate:"required"`
	Args    []string          `json:"args,omitempty"`
	Dir     string            `json:"dir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ExecRunner runs each registered function as a child process, feeding the
// payload on stdin and in the environment and piping the process streams to
// the sinks the dispatcher provides.
type ExecRunner struct {
	mtx sync.RWMutex
	fns map[string]Command
	l   log.Logger
}

func NewExecRunner(fns map[string]Command, l log.Logger) *ExecRunner {
	if fns == nil {
		fns = make(map[string]Command)
	}
	return &ExecRunner{
		fns: fns,
		l:   Logger(l),
	}
}

func (r *ExecRunner) Register(function string, cmd Command) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.fns[function] = cmd
}

func (r *ExecRunner) Unregister(function string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	delete(r.fns, function)
}

func (r *ExecRunner) get(function string) (Command, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	c, ok := r.fns[function]
	return c, ok
}

func (r *ExecRunner) Invoke(function string, payload string, stdout io.Writer, stderr io.Writer) error {
	c, ok := r.get(function)
	if !ok {
		return &FunctionNotFound{Function: function}
	}
	cmd := exec.Command(c.Command, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = strings.NewReader(payload)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = append(os.Environ(),
		EnvFunctionName+"="+function,
		EnvEvent+"="+payload)
	for k, v := range c.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	begin := time.Now()
	err := cmd.Run()
	r.l.Debugf("invoke function=%s command=%s elapsed=%s err:%+v",
		function, c.Command, time.Since(begin), err)
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			// a crashed process is the function's own failure, emit the
			// runtime error envelope so it surfaces as a user error
			b, _ := json.Marshal(map[string]string{
				"errorMessage": fmt.Sprintf("process exited with %d", ee.ExitCode()),
				"errorType":    "Runtime.ExitError",
			})
			if _, werr := fmt.Fprintf(stdout, "\n%s", b); werr != nil {
				return errors.Wrapf(werr, "fail to write error envelope err:%s", werr.Error())
			}
			return nil
		}
		return errors.Wrapf(err, "fail to run function=%s err:%s", function, err.Error())
	}
	return nil
}
