// util/buffer.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

// ErrCapacityExceeded is returned (wrapped) when a FixedBuffer would grow
// past its capacity.
var ErrCapacityExceeded = errors.New("fixed buffer capacity exceeded")

// FixedBuffer is an append-only buffer with a hard capacity that is
// allocated once and reused across frames. Unlike a plain slice it never
// reallocates: appending past the capacity is an error rather than a
// silent grow or truncation.
type FixedBuffer[T constraints.Unsigned] struct {
	name string
	buf  []T
}

func MakeFixedBuffer[T constraints.Unsigned](name string, capacity int) FixedBuffer[T] {
	return FixedBuffer[T]{name: name, buf: make([]T, 0, capacity)}
}

// Reset empties the buffer while keeping its storage.
func (b *FixedBuffer[T]) Reset() {
	b.buf = b.buf[:0]
}

func (b *FixedBuffer[T]) Len() int { return len(b.buf) }
func (b *FixedBuffer[T]) Cap() int { return cap(b.buf) }

// Slice returns the values appended since the last Reset. The returned
// slice aliases the buffer's storage.
func (b *FixedBuffer[T]) Slice() []T { return b.buf }

// Append adds the given values, failing without modifying the buffer if
// they do not all fit.
func (b *FixedBuffer[T]) Append(v ...T) error {
	if len(b.buf)+len(v) > cap(b.buf) {
		return fmt.Errorf("%s: %d + %d values exceeds capacity %d: %w", b.name, len(b.buf), len(v),
			cap(b.buf), ErrCapacityExceeded)
	}
	b.buf = append(b.buf, v...)
	return nil
}
