// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package ascii implements the ASCII byte transport: a serial line read
// byte-by-byte (or in whatever chunks the driver hands back) and
// accumulated until a frame's trailing CR + user delimiter is seen.
// Framing semantics (address filtering, LRC, dispatch) belong to package
// frame, not here.
package ascii

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grid-x/serial"
	"github.com/ot-systems/mbslave/internal/slave/frame"
	"github.com/ot-systems/mbslave/transport"
)

const (
	startChar = ':'
	crChar    = 0x0D
)

// Config holds the serial-line settings for a server.
type Config struct {
	Device   string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// Server implements transport.Server over a serial line using ASCII framing.
type Server struct {
	config Config
	port   serialPort
}

// NewServer creates a new ASCII server for the given serial line.
func NewServer(cfg Config) *Server {
	return &Server{config: cfg}
}

// Start opens the serial port and serves ASCII ADUs until ctx is cancelled.
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
	slog.Info("ASCII server listening", "device", s.config.Device)

	go func() {
		<-ctx.Done()
		s.port.Close()
	}()

	chunk := make([]byte, 256)
	var acc []byte
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := s.port.Read(chunk)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if n == 0 {
			continue
		}

		for _, b := range chunk[:n] {
			if b == startChar {
				// A fresh ':' always restarts framing, matching a real
				// ASCII slave dropping whatever partial frame it had.
				acc = acc[:0]
			}
			acc = append(acc, b)

			// A frame ends with CR plus exactly one delimiter byte. The
			// delimiter's value is the framing layer's business (it can be
			// reconfigured at runtime via a diagnostic sub-function), so
			// any byte following a CR closes the frame here.
			if len(acc) >= 3 && acc[len(acc)-2] == crChar {
				if len(acc) >= frame.ASCIIMinSize && len(acc) <= frame.ASCIIMaxSize {
					resp, ok := handle(append([]byte(nil), acc...))
					if ok {
						if _, err := s.port.Write(resp); err != nil {
							slog.Error("ASCII write failed", "err", err)
						}
					}
				}
				acc = acc[:0]
				continue
			}
			if len(acc) > frame.ASCIIMaxSize {
				acc = acc[:0]
			}
		}
	}
}

// Close releases the serial port.
func (s *Server) Close() error {
	return s.port.Close()
}
