// SPDX-License-Identifier: Apache-2.0

package shmem

// Helpers for zero-terminated strings stored in fixed-size byte arrays
// inside segments. None of them allocate, so they are safe to use while a
// spin lock is held.

// SetString copies s into dst, truncating it to len(dst)-1 bytes, and
// zero-fills the remainder.
func SetString(dst []byte, s string) {
	n := copy(dst[:len(dst)-1], s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// ClearString marks dst as the empty string.
func ClearString(dst []byte) {
	dst[0] = 0
}

// StringLen returns the length of the zero-terminated string in b.
func StringLen(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return len(b)
}

// IsEmptyString reports whether b holds the empty string.
func IsEmptyString(b []byte) bool {
	return b[0] == 0
}

// EqualString reports whether b holds exactly s.
func EqualString(b []byte, s string) bool {
	n := StringLen(b)
	return n == len(s) && string(b[:n]) == s
}

// String returns a copy of the zero-terminated string in b.
func String(b []byte) string {
	return string(b[:StringLen(b)])
}
