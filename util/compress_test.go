// util/compress_test.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"slices"
	"testing"
)

func TestDeltaEncodeDecodeBytes(t *testing.T) {
	tests := []struct {
		name      string
		reference []byte
		next      []byte
	}{
		{
			name:      "empty next",
			reference: []byte("bank A"),
			next:      []byte{},
		},
		{
			name:      "identical strings",
			reference: []byte("bank A"),
			next:      []byte("bank A"),
		},
		{
			name:      "one char difference",
			reference: []byte("bank A"),
			next:      []byte("bank B"),
		},
		{
			name:      "next longer",
			reference: []byte("bank A"),
			next:      []byte("bank A contents"),
		},
		{
			name:      "next shorter",
			reference: []byte("bank A contents"),
			next:      []byte("bank A"),
		},
		{
			name:      "completely different",
			reference: []byte("abc"),
			next:      []byte("xyz"),
		},
		{
			name:      "empty reference",
			reference: []byte{},
			next:      []byte("bank A"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta := DeltaEncodeBytes(tt.reference, tt.next)
			decoded := DeltaDecodeBytes(tt.reference, delta)

			if !slices.Equal(decoded, tt.next) {
				t.Errorf("DeltaDecodeBytes(%v, DeltaEncodeBytes(%v, %v)) = %v, want %v",
					tt.reference, tt.reference, tt.next, decoded, tt.next)
			}

			if len(tt.next) > 0 && len(delta) != len(tt.next) {
				t.Errorf("delta length = %d, want %d", len(delta), len(tt.next))
			}

			for i := 0; i < len(delta) && i < len(tt.reference) && i < len(tt.next); i++ {
				if tt.reference[i] == tt.next[i] && delta[i] != 0 {
					t.Errorf("delta[%d] = %d, want 0 for matching chars", i, delta[i])
				}
			}
		})
	}
}

func TestDeltaBytesNil(t *testing.T) {
	if got := DeltaEncodeBytes([]byte{1, 2}, nil); got != nil {
		t.Errorf("DeltaEncodeBytes(_, nil) = %v, want nil", got)
	}
	if got := DeltaDecodeBytes([]byte{1, 2}, nil); got != nil {
		t.Errorf("DeltaDecodeBytes(_, nil) = %v, want nil", got)
	}
}
