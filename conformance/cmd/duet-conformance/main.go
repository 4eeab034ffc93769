// © Copyright 2025-2026, Duet RPC authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/duetrpc/duetrpc/conformance"

	"google.golang.org/grpc"
)

func main() {
	svc := conformance.Service{}

	httpListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to listen: %v\n", err)
		os.Exit(1)
	}
	grpcListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to listen: %v\n", err)
		os.Exit(1)
	}

	// Ports are printed in a fixed format so the conformance harness can
	// scrape them.
	fmt.Printf("TWIRP_PORT:%d\n", httpListener.Addr().(*net.TCPAddr).Port)
	fmt.Printf("GRPC_PORT:%d\n", grpcListener.Addr().(*net.TCPAddr).Port)
	os.Stdout.Sync()

	twirpRouter := conformance.NewTwirpRouter(svc)
	twirpRouter.EnableCompression()
	httpSrv := &http.Server{Handler: twirpRouter.Build()}

	grpcSrv := grpc.NewServer()
	conformance.RegisterGrpc(svc, grpcSrv)

	// Catch SIGTERM/SIGINT so the process exits cleanly and flushes
	// coverage data when built with -cover.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		grpcSrv.GracefulStop()
		httpSrv.Shutdown(context.Background())
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- grpcSrv.Serve(grpcListener) }()
	go func() { errCh <- httpSrv.Serve(httpListener) }()

	if err := <-errCh; err != nil && err != http.ErrServerClosed && err != grpc.ErrServerStopped {
		fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		os.Exit(1)
	}
}
