// util/util_test.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFixedBufferAppend(t *testing.T) {
	b := MakeFixedBuffer[uint16]("indices", 4)
	if err := b.Append(1, 2, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Append(4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Len() != 4 || b.Cap() != 4 {
		t.Errorf("expected len/cap 4/4, got %d/%d", b.Len(), b.Cap())
	}

	err := b.Append(5)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if !strings.Contains(err.Error(), "indices") {
		t.Errorf("error should name the buffer: %v", err)
	}
	if b.Len() != 4 {
		t.Errorf("failed append must not modify the buffer; len %d", b.Len())
	}
}

func TestFixedBufferPartialAppendRejected(t *testing.T) {
	b := MakeFixedBuffer[uint32]("vertices", 5)
	_ = b.Append(1, 2, 3, 4)
	if err := b.Append(5, 6); err == nil {
		t.Fatalf("expected overflow error")
	}
	if got := b.Slice(); len(got) != 4 || got[3] != 4 {
		t.Errorf("unexpected contents after rejected append: %v", got)
	}
}

func TestFixedBufferResetKeepsStorage(t *testing.T) {
	b := MakeFixedBuffer[uint32]("v", 8)
	_ = b.Append(1, 2, 3)
	p := &b.Slice()[0]
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("expected empty buffer after Reset")
	}
	_ = b.Append(9)
	if &b.Slice()[0] != p {
		t.Errorf("Reset should not reallocate storage")
	}
}

func TestSelectClamp(t *testing.T) {
	if Select(true, 1, 2) != 1 || Select(false, 1, 2) != 2 {
		t.Errorf("Select returned the wrong value")
	}
	if Clamp(5, 0, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(2, 0, 3) != 2 {
		t.Errorf("Clamp returned the wrong value")
	}
	if BoolBit[uint32](true) != 1 || BoolBit[uint8](false) != 0 {
		t.Errorf("BoolBit returned the wrong value")
	}
}

func TestErrorLoggerErr(t *testing.T) {
	var e ErrorLogger
	if e.Err() != nil {
		t.Errorf("expected nil error with nothing logged")
	}

	sentinel := errors.New("too short")
	e.Push("frame")
	e.Push("bank G")
	e.Error(fmt.Errorf("0 bytes: %w", sentinel))
	e.Pop()
	e.ErrorString("no polygons")
	e.Pop()

	err := e.Err()
	if !errors.Is(err, sentinel) {
		t.Errorf("expected the logged error to be wrapped, got %v", err)
	}
	if got := err.Error(); got != "frame / bank G: 0 bytes: too short\nframe: no polygons" {
		t.Errorf("unexpected error string %q", got)
	}
}

func TestErrorLoggerHierarchy(t *testing.T) {
	var e ErrorLogger
	e.Push("config")
	e.Push("scale")
	e.ErrorString("must be >= %d", 1)
	e.Pop()
	e.Pop()

	if !e.HaveErrors() {
		t.Fatalf("expected errors")
	}
	if got := e.String(); got != "config / scale: must be >= 1" {
		t.Errorf("unexpected error string %q", got)
	}
}
