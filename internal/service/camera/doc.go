// Package camera periodically captures a snapshot and hands it to the controller.
package camera
