// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package tcp implements the Modbus TCP byte transport: a connection is
// read one MBAP-framed ADU at a time, using the header's length field to
// know how many bytes follow. Framing semantics (unit filtering, dispatch)
// belong to package frame, not here.
package tcp

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/ot-systems/mbslave/internal/slave/frame"
	"github.com/ot-systems/mbslave/transport"
)

const mbapHeaderSize = 6

// Server implements transport.Server over TCP.
type Server struct {
	Address string

	listener net.Listener
}

// NewServer creates a new TCP server listening on address.
func NewServer(address string) *Server {
	return &Server{Address: address}
}

// Start listens on s.Address and serves MBAP-framed ADUs until ctx is
// cancelled. Each connection is read independently in its own goroutine;
// handle is shared and itself serialized by the caller's model.Instance lock.
func (s *Server) Start(ctx context.Context, handle transport.FrameHandler) error {
	listener, err := net.Listen("tcp", s.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Address, err)
	}
	s.listener = listener
	slog.Info("Modbus TCP server listening", "addr", s.Address)

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Error("failed to accept connection", "err", err)
				continue
			}
		}
		go s.handleConnection(ctx, conn, handle)
	}
}

// Close closes the server listener.
func (s *Server) Close() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, handle transport.FrameHandler) {
	defer conn.Close()
	slog.Info("TCP client connected", "addr", conn.RemoteAddr())

	header := make([]byte, mbapHeaderSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, err := io.ReadFull(conn, header); err != nil {
			if err != io.EOF {
				slog.Error("failed to read MBAP header", "addr", conn.RemoteAddr(), "err", err)
			}
			return
		}

		length := binary.BigEndian.Uint16(header[4:6])
		if length == 0 || int(length) > frame.TCPMaxSize-mbapHeaderSize {
			slog.Error("invalid MBAP length", "addr", conn.RemoteAddr(), "length", length)
			return
		}

		body := make([]byte, length)
		if _, err := io.ReadFull(conn, body); err != nil {
			slog.Error("failed to read MBAP body", "addr", conn.RemoteAddr(), "err", err)
			return
		}

		adu := append(append([]byte(nil), header...), body...)
		resp, ok := handle(adu)
		if !ok {
			continue
		}
		if _, err := conn.Write(resp); err != nil {
			slog.Error("failed to write TCP response", "addr", conn.RemoteAddr(), "err", err)
			return
		}
	}
}
