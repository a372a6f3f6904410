// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"spectrallog/cmd"
	"spectrallog/internal/log"
	"spectrallog/pkg/build"
)

// main wires the process lifetime: build info, signal handling and the
// command tree. An interrupt cancels the context the commands run with, which
// stops the measurement loop at its next wait.
func main() {
	if err := build.Initialize(); err != nil {
		log.Debugf("Build: development build, %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cmd.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Errorf("%v", err)
		log.Sync()
		os.Exit(1)
	}
	log.Sync()
}
