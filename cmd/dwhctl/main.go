// Copyright © 2020 Banzai Cloud
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"emperror.dev/emperror"
	"emperror.dev/errors"
	"github.com/oklog/run"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"logur.dev/logur"

	"github.com/banzaicloud/dwhctl/internal/app/dwhctl/cli"
	"github.com/banzaicloud/dwhctl/internal/dwh"
	"github.com/banzaicloud/dwhctl/internal/platform/buildinfo"
	"github.com/banzaicloud/dwhctl/internal/platform/errorhandler"
	"github.com/banzaicloud/dwhctl/internal/platform/log"
	"github.com/banzaicloud/dwhctl/pkg/providers/amazon"
)

// Provisioned by ldflags
// nolint: gochecknoglobals
var (
	version    string
	commitHash string
	buildDate  string
)

// invalidConfigurationError is returned when the configuration cannot be loaded or is invalid.
type invalidConfigurationError struct {
	err error
}

func (e invalidConfigurationError) Error() string {
	return e.err.Error()
}

func (e invalidConfigurationError) Unwrap() error {
	return e.err
}

type app struct {
	v         *viper.Viper
	buildInfo buildinfo.BuildInfo

	logger       logur.Logger
	errorHandler emperror.ErrorHandler
}

func main() {
	a := &app{
		v:         viper.New(),
		buildInfo: buildinfo.New(version, commitHash, buildDate),
		logger:    log.NewLogger(log.Config{Format: "logfmt", Level: "info"}),
	}
	a.errorHandler = errorhandler.New(a.logger)

	rootCmd := cli.NewRootCommand(appName, version, a.newProvisioner)
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s version %s (%s) built on %s\n", appName, version, commitHash, buildDate))
	rootCmd.PreRunE = a.dumpConfig

	configure(a.v, rootCmd.Flags())

	var group run.Group

	// Run the command
	{
		ctx, cancel := context.WithCancel(context.Background())

		group.Add(
			func() error {
				return rootCmd.ExecuteContext(ctx)
			},
			func(e error) {
				cancel()
			},
		)
	}

	// Setup signal handler
	{
		var (
			cancelInterrupt = make(chan struct{})
			ch              = make(chan os.Signal, 2)
		)
		defer close(ch)

		group.Add(
			func() error {
				signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

				select {
				case sig := <-ch:
					return errors.NewWithDetails("captured signal", "signal", sig.String())
				case <-cancelInterrupt:
				}

				return nil
			},
			func(e error) {
				close(cancelInterrupt)
				signal.Stop(ch)
			},
		)
	}

	err := group.Run()

	os.Exit(a.exitCode(err))
}

func (a *app) exitCode(err error) int {
	if err == nil {
		return 0
	}

	if errors.Is(err, cli.ErrWrongConfiguration) {
		return 2
	}

	var configErr invalidConfigurationError
	if errors.As(err, &configErr) {
		a.logger.Error(err.Error())

		return 3
	}

	a.errorHandler.Handle(err)

	return 1
}

// setup reads and validates the configuration, then replaces the bootstrap logger.
func (a *app) setup() (configuration, error) {
	err := readConfig(a.v)
	_, configFileNotFound := err.(viper.ConfigFileNotFoundError)
	if err != nil && !configFileNotFound {
		return configuration{}, invalidConfigurationError{errors.WrapIf(err, "failed to read configuration")}
	}

	config, err := loadConfiguration(a.v)
	if err != nil {
		return config, invalidConfigurationError{err}
	}

	// Create logger (first thing after configuration loading)
	a.logger = log.WithFields(log.NewLogger(config.Log), map[string]interface{}{"app": appName})
	a.errorHandler = errorhandler.New(a.logger)

	log.SetStandardLogger(a.logger)

	if configFileNotFound {
		a.logger.Warn("configuration file not found")
	}

	err = config.Validate()
	if err != nil {
		return config, invalidConfigurationError{err}
	}

	return config, nil
}

func (a *app) dumpConfig(_ *cobra.Command, _ []string) error {
	if !a.v.GetBool("dump-config") {
		return nil
	}

	config, err := a.setup()
	if err != nil {
		return err
	}

	fmt.Println(config.String())

	os.Exit(0)

	return nil
}

func (a *app) newProvisioner(out io.Writer) (cli.Provisioner, error) {
	config, err := a.setup()
	if err != nil {
		return nil, err
	}

	a.logger.Info("starting application", a.buildInfo.Fields())

	sess, err := amazon.NewSession(config.AWS, a.logger)
	if err != nil {
		return nil, err
	}

	return dwh.NewProvisioner(config.DWH, config.Poll, amazon.NewClients(sess), a.logger, dwh.WithStatusOutput(out)), nil
}
