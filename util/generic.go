// util/generic.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"golang.org/x/exp/constraints"
)

func Select[T any](sel bool, a, b T) T {
	if sel {
		return a
	} else {
		return b
	}
}

func Clamp[T constraints.Ordered](x T, low T, high T) T {
	if x < low {
		return low
	} else if x > high {
		return high
	}
	return x
}

// BoolBit returns 1 if b is true and 0 otherwise, for packing flags into
// register-style words.
func BoolBit[T constraints.Unsigned](b bool) T {
	if b {
		return 1
	}
	return 0
}
