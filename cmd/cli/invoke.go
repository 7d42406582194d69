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

package main

import (
	"fmt"
	"os"

	"github.com/icon-project/btp2/common/cli"
	"github.com/icon-project/btp2/common/errors"
	"github.com/icon-project/btp2/common/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lambda-emu/lambda-sdk/api"
)

func ClientPersistentPreRunE(vc *viper.Viper, c *api.Client) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := cli.ValidateFlagsWithViper(vc, cmd.Flags()); err != nil {
			return err
		}
		l := log.GlobalLogger()
		if lv, err := log.ParseLevel(vc.GetString("log_level")); err != nil {
			return errors.Wrapf(err, "fail to parseLevel log_level err:%s", err.Error())
		} else {
			l.SetLevel(lv)
		}
		if lv, err := log.ParseLevel(vc.GetString("console_level")); err != nil {
			return errors.Wrapf(err, "fail to parseLevel console_level err:%s", err.Error())
		} else {
			l.SetConsoleLevel(lv)
		}
		dumpLogLevel, err := log.ParseLevel(vc.GetString("dump_log_level"))
		if err != nil {
			return errors.Wrapf(err, "fail to parseLevel dump_log_level err:%s", err.Error())
		}
		*c = *api.NewClient(
			vc.GetString("url"),
			api.EnsureDumpLogLevel(dumpLogLevel),
			l)
		return nil
	}
}

func AddClientRequiredFlags(c *cobra.Command) {
	pFlags := c.PersistentFlags()
	pFlags.String("url", "http://localhost:3001", "server address")
	pFlags.String("log_level", "debug", "Global log level (trace,debug,info,warn,error,fatal,panic)")
	pFlags.String("console_level", "trace", "Console log level (trace,debug,info,warn,error,fatal,panic)")
	pFlags.String("dump_log_level", "trace", "client dump log level (trace,debug,info)")
}

func NewInvokeCommand(parentCmd *cobra.Command, parentVc *viper.Viper) (*cobra.Command, *viper.Viper) {
	rootCmd, rootVc := cli.NewCommand(parentCmd, parentVc, "invoke FUNCTION", "Invoke a function")
	var (
		c api.Client
	)
	rootCmd.PersistentPreRunE = ClientPersistentPreRunE(rootVc, &c)
	rootCmd.Args = cli.ArgsWithDefaultErrorFunc(cobra.ExactArgs(1))
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		payload, err := cmd.Flags().GetString("payload")
		if err != nil {
			return err
		}
		b := []byte(payload)
		if payloadFile, _ := cmd.Flags().GetString("payload_file"); len(payloadFile) > 0 {
			if b, err = os.ReadFile(payloadFile); err != nil {
				return err
			}
		}
		opts := &api.InvokeOptions{}
		opts.InvocationType, _ = cmd.Flags().GetString("invocation_type")
		opts.LogType, _ = cmd.Flags().GetString("log_type")
		r, err := c.Invoke(args[0], b, opts)
		if err != nil {
			return err
		}
		if len(r.RequestID) > 0 {
			cmd.Println("RequestId:", r.RequestID)
		}
		if len(r.FunctionError) > 0 {
			cmd.PrintErrln("Function error:", r.FunctionError)
		}
		if len(r.Payload) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", r.Payload)
		}
		return nil
	}
	rootCmd.Flags().String("payload", "{}", "JSON payload")
	rootCmd.Flags().String("payload_file", "", "File containing the JSON payload")
	rootCmd.Flags().String("invocation_type", "", "Invocation type (RequestResponse,Event)")
	rootCmd.Flags().String("log_type", "", "Log type (None)")
	AddClientRequiredFlags(rootCmd)
	cli.BindPFlags(rootVc, rootCmd.PersistentFlags())
	return rootCmd, rootVc
}
