// Package security implements persistence for sensors and the arming/alarm statuses.
//
// MemoryRepository keeps everything in memory. FileRepository adds write-through
// persistence of the same view as protobuf JSON on disk; a failed write rolls the
// in-memory change back so callers never observe a partially applied mutation.
package security
