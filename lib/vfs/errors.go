// SPDX-License-Identifier: GPL-2.0-or-later

package vfs

import "fmt"

// NotFoundError is returned when a path component doesn't exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("vfs: not found: %s", e.Path) }

// IsADirError is returned when a file operation is attempted on a
// directory.
type IsADirError struct {
	Path string
}

func (e *IsADirError) Error() string { return fmt.Sprintf("vfs: is a directory: %s", e.Path) }

// NotADirError is returned when a directory operation is attempted on a
// file, or when a path component that must be a directory is a file.
type NotADirError struct {
	Path string
}

func (e *NotADirError) Error() string { return fmt.Sprintf("vfs: not a directory: %s", e.Path) }
