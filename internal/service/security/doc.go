// Package security implements the controller that owns the arming, alarm and
// sensor state machine.
//
// The Controller reads and writes a repository, consults an image classifier and
// fans status changes out to registered listeners. All mutating operations are
// serialized by one mutex; the classifier call in ProcessImage runs outside it.
package security
