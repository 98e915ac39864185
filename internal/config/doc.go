// Package config defines the settings used by the catpoint binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Besides the controller address it carries the classifier, camera loop,
// MQTT publisher and metrics endpoint settings.
package config
