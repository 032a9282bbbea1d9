// util/compress.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

// DeltaEncodeBytes returns the bytewise difference of next against ref.
// Bytes of next past the end of ref are stored as-is. Consecutive frames'
// VRAM banks are mostly unchanged, so their deltas are mostly zeros and
// compress well.
func DeltaEncodeBytes(ref, next []byte) []byte {
	if len(next) == 0 {
		return nil
	}

	delta := make([]byte, len(next))
	for i := range next {
		if i < len(ref) {
			delta[i] = next[i] - ref[i]
		} else {
			delta[i] = next[i]
		}
	}
	return delta
}

func DeltaDecodeBytes(ref, delta []byte) []byte {
	if len(delta) == 0 {
		return nil
	}

	r := make([]byte, len(delta))
	for i := range delta {
		if i < len(ref) {
			r[i] = ref[i] + delta[i]
		} else {
			r[i] = delta[i]
		}
	}
	return r
}
