// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/tomtom215/mapasync/internal/logging"
	"github.com/tomtom215/mapasync/internal/mapview"
	"github.com/tomtom215/mapasync/internal/realtime"
)

// Options is the root of the command line. Struct tags are read by
// github.com/jessevdk/go-flags.
type Options struct {
	Server   string        `short:"s" long:"server" env:"MAPA_SERVER" default:"http://localhost:5000" description:"Relay base URL"`
	LogLevel string        `long:"log-level" env:"LOG_LEVEL" default:"warn" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Minimum log level"`
	Timeout  time.Duration `long:"timeout" default:"10s" description:"Timeout for loading places and sending a change"`

	List   ListCmd   `command:"list"   description:"Print the shared places"`
	Watch  WatchCmd  `command:"watch"  description:"Print the shared places, then every change until interrupted"`
	Add    AddCmd    `command:"add"    description:"Add a place at a coordinate, as a click on the map would"`
	Move   MoveCmd   `command:"move"   description:"Move a place, as dragging its marker would"`
	Delete DeleteCmd `command:"delete" description:"Remove a place, as double-clicking its marker would"`
}

// env is what every command needs besides its own flags.
type env struct {
	ctx  context.Context
	opts *Options
	out  io.Writer
}

func newOptions(e *env) *Options {
	opts := &Options{}
	e.opts = opts
	opts.List.env = e
	opts.Watch.env = e
	opts.Add.env = e
	opts.Move.env = e
	opts.Delete.env = e
	return opts
}

// run parses args and executes the selected command, writing results to out.
func run(ctx context.Context, args []string, out io.Writer) error {
	e := &env{ctx: ctx, out: out}
	parser := flags.NewParser(newOptions(e), flags.HelpFlag|flags.PassDoubleDash)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		logging.Init(logging.Config{
			Level:  e.opts.LogLevel,
			Format: "console",
			Output: os.Stderr,
		})
		return cmd.Execute(args)
	}

	_, err := parser.ParseArgs(args)
	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
		fmt.Fprintln(out, flagsErr.Message)
		return nil
	}
	return err
}

// timeout bounds a single request-response step.
func (e *env) timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(e.ctx, e.opts.Timeout)
}

// session is a loaded map view connected to the relay.
type session struct {
	ctrl    *mapview.Controller
	channel *realtime.Channel
}

// connect dials the channel first so no change is missed between the
// initial load and the first event.
func (e *env) connect() (*session, error) {
	ctx, cancel := e.timeout()
	defer cancel()

	channel, err := realtime.Dial(ctx, e.opts.Server, realtime.ChannelOptions{})
	if err != nil {
		return nil, err
	}
	ctrl := mapview.NewController(
		realtime.NewPlacesClient(e.opts.Server, nil),
		channel,
		mapview.Config{Origin: channel.Origin()},
	)
	if err := ctrl.Load(ctx); err != nil {
		_ = channel.Close()
		return nil, err
	}
	return &session{ctrl: ctrl, channel: channel}, nil
}

func (s *session) Close() error {
	return s.channel.Close()
}
