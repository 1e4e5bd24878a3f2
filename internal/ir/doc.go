// Package ir provides the value and schema types shared by every layer of
// datastack.
//
// This package contains type definitions and their encodings only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Attribute values are a closed set (Null, String, Int, Float, Bool, Time)
//   - Time is stored as UTC unix nanoseconds so it orders numerically
//   - Stored attribute maps use canonical JSON (sorted keys, NFC strings)
//   - Record.Seq is a logical insertion clock, never wall-clock time
package ir
