// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

// Command mapa-client drives a shared map from the terminal.
//
// It holds the same marker view a browser client would, loaded from
// GET /mapa and kept in sync over the relay's websocket channel:
//
//	mapa-client list
//	mapa-client watch
//	mapa-client add --lat 40.4168 --lng -3.7038
//	mapa-client move --id 2026-03-04T05:06:07.890Z --lat 41.38 --lng 2.17
//	mapa-client delete --id 2026-03-04T05:06:07.890Z
//
// The relay is chosen with --server or MAPA_SERVER.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "mapa-client:", err)
		os.Exit(1)
	}
}
