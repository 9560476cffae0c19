// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package transport defines the byte-transport boundary the core engine
// sits behind: a Server owns the physical or network link (serial port,
// TCP listener) and feeds it complete ADUs, already delimited, to a
// FrameHandler; everything past that boundary (address filtering,
// integrity checks, PDU dispatch) belongs to the core, not here.
package transport

import "context"

// FrameHandler answers one already-delimited ADU and returns the ADU to
// send back. ok is false when nothing should be written back to the link
// at all (broadcast request, or the instance is in listen-only mode).
type FrameHandler func(adu []byte) (resp []byte, ok bool)

// Server owns a link that delivers framed ADUs to a FrameHandler. Start
// blocks until ctx is cancelled or the link fails.
type Server interface {
	Start(ctx context.Context, handle FrameHandler) error
	Close() error
}
