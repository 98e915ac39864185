// Package client implements the catpoint-ctl commands.
//
// Each command connects to the catpoint server, performs one call and prints the
// resulting controller status in colour.
package client
