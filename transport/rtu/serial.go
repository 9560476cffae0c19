// Copyright (c) 2014-2026 Quoc-Viet Nguyen, Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/grid-x/serial"
)

// serialTimeout bounds a single Read call. A read that returns after this
// much silence on the line is treated as the end of one ADU: this is the
// byte-transport's substitute for the inter-character gap timing a real
// UART driver would otherwise enforce.
const serialTimeout = 50 * time.Millisecond

// serialPort owns the open line. It's safe to Close concurrently with a
// blocked Read; most serial drivers unblock the read with an error when
// the underlying file descriptor is closed.
type serialPort struct {
	serial.Config

	mu   sync.Mutex
	port io.ReadWriteCloser
}

// Connect opens the port if it isn't already open.
func (s *serialPort) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if s.port != nil {
		return nil
	}
	port, err := serial.Open(&s.Config)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", s.Config.Address, err)
	}
	s.port = port
	return nil
}

// Read blocks until a frame arrives or the port's configured timeout elapses.
func (s *serialPort) Read(p []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return 0, fmt.Errorf("modbus: serial port not open")
	}
	return port.Read(p)
}

// Write sends a frame on the line.
func (s *serialPort) Write(p []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return 0, fmt.Errorf("modbus: serial port not open")
	}
	return port.Write(p)
}

// Close closes the port if it's open.
func (s *serialPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
