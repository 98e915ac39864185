// Package security contains core domain types for the premises security controller.
//
// It defines the arming and alarm status enums, the binary-state Sensor and the
// Actor that issued a command, with Clone helpers to avoid leaking internal references.
package security
