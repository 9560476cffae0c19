// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package ascii

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/grid-x/serial"
)

// serialTimeout bounds a single Read call, the same way the RTU transport
// uses a timeout to detect an idle gap between frames.
const serialTimeout = 50 * time.Millisecond

// serialPort owns the open line. See transport/rtu's serialPort for the
// same pattern; ASCII keeps its own copy rather than sharing package
// rtu's, since the two transports are independent byte-level sessions
// that happen to use the same underlying driver.
type serialPort struct {
	serial.Config

	mu   sync.Mutex
	port io.ReadWriteCloser
}

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

func (s *serialPort) Read(p []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return 0, fmt.Errorf("modbus: serial port not open")
	}
	return port.Read(p)
}

func (s *serialPort) Write(p []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return 0, fmt.Errorf("modbus: serial port not open")
	}
	return port.Write(p)
}

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
