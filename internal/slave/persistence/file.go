// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// FileStorage persists the bank through plain file I/O: every OnWrite
// rewrites the whole bank and fsyncs it. Simple, and fine for the small
// banks a descriptor-addressed slave actually needs.
type FileStorage struct {
	path string
	file *os.File
}

// NewFileStorage creates a new FileStorage rooted at path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load opens (creating if necessary) and reads the backing file, resizing
// it to size if it doesn't already match.
func (fs *FileStorage) Load(size int) (*Bank, error) {
	f, err := os.OpenFile(fs.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	fs.file = f

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() != int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to resize file: %w", err)
		}
	}

	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return NewBankFromBytes(data), nil
}

// Save flushes the bank to disk.
func (fs *FileStorage) Save(bank *Bank) error {
	return fs.sync(bank)
}

// OnWrite syncs the file so a write is never lost to a crash.
func (fs *FileStorage) OnWrite(bank *Bank, offset, length int) {
	if err := fs.sync(bank); err != nil {
		slog.Error("failed to sync file storage", "err", err)
	}
}

func (fs *FileStorage) sync(bank *Bank) error {
	if fs.file == nil {
		return nil
	}
	if _, err := fs.file.WriteAt(bank.Bytes(), 0); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return fs.file.Sync()
}

// Close closes the backing file.
func (fs *FileStorage) Close() error {
	if fs.file == nil {
		return nil
	}
	return fs.file.Close()
}
