// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ot-systems/mbslave/internal/config"
	"github.com/ot-systems/mbslave/internal/slave/device"
	"github.com/ot-systems/mbslave/internal/slave/frame"
	"github.com/ot-systems/mbslave/transport"
	"github.com/ot-systems/mbslave/transport/ascii"
	"github.com/ot-systems/mbslave/transport/rtu"
	"github.com/ot-systems/mbslave/transport/tcp"
)

func main() {
	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	slog.Info("Starting Modbus slave...")

	dev, err := device.Build(cfg)
	if err != nil {
		slog.Error("Failed to build data model", "err", err)
		os.Exit(1)
	}
	defer dev.Close()

	var servers []transport.Server
	if cfg.RTU != nil {
		servers = append(servers, rtu.NewServer(rtu.Config{
			Device:   cfg.RTU.Device,
			BaudRate: cfg.RTU.BaudRate,
			DataBits: cfg.RTU.DataBits,
			StopBits: cfg.RTU.StopBits,
			Parity:   cfg.RTU.Parity,
		}))
	}
	if cfg.ASCII != nil {
		if len(cfg.ASCII.Delimiter) > 0 {
			dev.Instance.SetASCIIDelimiter(cfg.ASCII.Delimiter[0])
		}
		servers = append(servers, ascii.NewServer(ascii.Config{
			Device:   cfg.ASCII.Device,
			BaudRate: cfg.ASCII.BaudRate,
			DataBits: cfg.ASCII.DataBits,
			StopBits: cfg.ASCII.StopBits,
			Parity:   cfg.ASCII.Parity,
		}))
	}
	if cfg.TCP != nil {
		servers = append(servers, tcp.NewServer(cfg.TCP.Address))
	}

	if len(servers) == 0 {
		slog.Error("No transports configured. Exiting.")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func(s transport.Server) {
			defer wg.Done()
			var handle transport.FrameHandler
			switch s.(type) {
			case *rtu.Server:
				handle = frame.RTU(dev.Instance, nil)
			case *ascii.Server:
				handle = frame.ASCII(dev.Instance, nil)
			case *tcp.Server:
				handle = frame.TCP(dev.Instance, nil)
			}
			if err := s.Start(ctx, handle); err != nil {
				slog.Error("transport stopped with error", "err", err)
			}
		}(srv)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	cancel()
	for _, srv := range servers {
		srv.Close()
	}
	wg.Wait()
	slog.Info("Goodbye.")
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
