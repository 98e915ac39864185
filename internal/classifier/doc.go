// Package classifier answers whether a camera frame depicts the monitored subject.
//
// Random and Fixed are stand-ins for demos and tests. Labels applies a
// confidence threshold to the output of a LabelDetector such as HTTPDetector.
// New builds the configured implementation; clients are owned by the caller.
package classifier
