// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package rtu implements the RTU byte transport: a serial line read with
// a fixed inter-character timeout, so that a read which returns after an
// idle gap is treated as one complete ADU. Framing semantics (address
// filtering, CRC, dispatch) belong to package frame, not here.
package rtu

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grid-x/serial"
	"github.com/ot-systems/mbslave/internal/slave/frame"
	"github.com/ot-systems/mbslave/transport"
)

// Config holds the serial-line settings for a server.
type Config struct {
	Device   string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// Server implements transport.Server over a serial line, treating the
// device as an RTU slave answering a master on the bus.
type Server struct {
	config Config
	port   serialPort
}

// NewServer creates a new RTU server for the given serial line.
func NewServer(cfg Config) *Server {
	return &Server{config: cfg}
}

// Start opens the serial port and serves RTU ADUs until ctx is cancelled.
func (s *Server) Start(ctx context.Context, handle transport.FrameHandler) error {
	s.port.Config = serial.Config{
		Address:  s.config.Device,
		BaudRate: s.config.BaudRate,
		DataBits: s.config.DataBits,
		StopBits: s.config.StopBits,
		Parity:   s.config.Parity,
		Timeout:  serialTimeout,
	}
	if err := s.port.Connect(ctx); err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.config.Device, err)
	}
	slog.Info("RTU server listening", "device", s.config.Device)

	go func() {
		<-ctx.Done()
		s.port.Close()
	}()

	buf := make([]byte, frame.RTUMaxSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := s.port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Read timeouts are how idle gaps are detected. Every read
			// error, timeout or not, is retried without being logged.
			continue
		}
		if n == 0 {
			continue
		}

		resp, ok := handle(append([]byte(nil), buf[:n]...))
		if !ok {
			continue
		}
		if _, err := s.port.Write(resp); err != nil {
			slog.Error("RTU write failed", "err", err)
		}
	}
}

// Close releases the serial port.
func (s *Server) Close() error {
	return s.port.Close()
}
