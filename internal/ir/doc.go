// Package ir provides the value and envelope types shared by every layer of
// the collaborative event-reduction core.
//
// This package contains type definitions and their codecs only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types in event fields or shared state - use int64 (positions
//     are integer canvas units)
//   - Events are immutable value objects; Fields is never mutated after decode
//   - Canonical JSON (RFC 8785 key order, NFC strings) is the only encoding
//     used for content hashes and state digests
package ir
