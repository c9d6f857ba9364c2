// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pgtest/injection-points/injection/api/client"
)

type clientOptions struct {
	Server  string        `long:"server" default:"http://127.0.0.1:9090/test" env:"INJECTION_POINTS_SERVER" description:"URL of the API server"`
	Timeout time.Duration `long:"timeout" description:"give up after this long, 0 waits forever"`
}

func (o *clientOptions) client() (*client.Client, context.Context, context.CancelFunc, error) {
	if err := setup(); err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if o.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
	}
	return client.New(o.Server, &http.Client{}), ctx, cancel, nil
}

type pointArgs struct {
	Name string `positional-arg-name:"name" required:"yes"`
}

type attachCommand struct {
	clientOptions
	Args struct {
		Name   string `positional-arg-name:"name" required:"yes"`
		Action string `positional-arg-name:"action" required:"yes" description:"error, notice or wait"`
	} `positional-args:"yes" required:"yes"`
}

func (c *attachCommand) Execute(args []string) error {
	cl, ctx, cancel, err := c.client()
	if err != nil {
		return err
	}
	defer cancel()
	return cl.Attach(ctx, c.Args.Name, c.Args.Action)
}

type runCommand struct {
	clientOptions
	Args pointArgs `positional-args:"yes" required:"yes"`
}

func (c *runCommand) Execute(args []string) error {
	cl, ctx, cancel, err := c.client()
	if err != nil {
		return err
	}
	defer cancel()

	notices, err := cl.Run(ctx, c.Args.Name)
	if err != nil {
		return err
	}
	for _, notice := range notices {
		fmt.Fprintf(stdout, "NOTICE: %s\n", notice)
	}
	return nil
}

type wakeupCommand struct {
	clientOptions
	Args pointArgs `positional-args:"yes" required:"yes"`
}

func (c *wakeupCommand) Execute(args []string) error {
	cl, ctx, cancel, err := c.client()
	if err != nil {
		return err
	}
	defer cancel()
	return cl.Wakeup(ctx, c.Args.Name)
}

type detachCommand struct {
	clientOptions
	Args pointArgs `positional-args:"yes" required:"yes"`
}

func (c *detachCommand) Execute(args []string) error {
	cl, ctx, cancel, err := c.client()
	if err != nil {
		return err
	}
	defer cancel()
	return cl.Detach(ctx, c.Args.Name)
}

type setLocalCommand struct {
	clientOptions
}

func (c *setLocalCommand) Execute(args []string) error {
	cl, ctx, cancel, err := c.client()
	if err != nil {
		return err
	}
	defer cancel()
	return cl.SetLocal(ctx)
}

type stateCommand struct {
	clientOptions
}

func (c *stateCommand) Execute(args []string) error {
	cl, ctx, cancel, err := c.client()
	if err != nil {
		return err
	}
	defer cancel()

	state, err := cl.State(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}
