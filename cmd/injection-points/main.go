// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/pgtest/injection-points/injection/logging"
)

type options struct {
	LogLevel string `long:"log-level" default:"info" env:"INJECTION_POINTS_LOG_LEVEL" description:"log level"`

	Serve    serveCommand    `command:"serve" description:"Serve the injection points API from this process"`
	Attach   attachCommand   `command:"attach" description:"Attach an action to an injection point"`
	Run      runCommand      `command:"run" description:"Run an injection point in the server process"`
	Wakeup   wakeupCommand   `command:"wakeup" description:"Wake up the process waiting on an injection point"`
	Detach   detachCommand   `command:"detach" description:"Detach an injection point"`
	SetLocal setLocalCommand `command:"set-local" description:"Link points attached from now on to the server process"`
	State    stateCommand    `command:"state" description:"Print the attached points and shared tables"`
}

var (
	opts   options
	stdout io.Writer = os.Stdout
)

// setup applies the global options. Every command calls it first.
func setup() error {
	logging.SetOutput(os.Stderr)
	return logging.SetLogLevel(opts.LogLevel)
}

func main() {
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, flagsErr.Message)
			os.Exit(0)
		}
		if flagsErr != nil {
			log.WithError(err).Fatal("Failed to parse command line arguments: ", os.Args)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
