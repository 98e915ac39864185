// Package notify holds controller listeners that forward status changes to the
// outside world: the log, Prometheus metrics and an MQTT broker.
package notify
