// Package models holds the types shared by the buffer, loader, processing
// and engine packages: file type and processing enums, and the error
// taxonomy every package wraps its failures in.
package models

import "errors"

var (
	// ErrShapeMismatch reports disagreeing buffer dimensions.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrOutOfBounds reports a coordinate or layer index outside the buffer.
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrUnknownFormat is returned when no decoder recognizes a stream.
	ErrUnknownFormat = errors.New("unknown format")

	// ErrCorruptData is returned for truncated or malformed streams.
	ErrCorruptData = errors.New("corrupt data")

	// ErrReferenceLoad reports a darkfield, normalization or operand
	// reference that could not be loaded.
	ErrReferenceLoad = errors.New("reference load error")

	// ErrInvalidArgument reports a bad parameter such as a non-positive
	// bin count or a negative threshold.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBusy is returned when a mutation is attempted from inside an
	// update notification.
	ErrBusy = errors.New("update in progress")
)
