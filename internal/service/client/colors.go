package client

import (
	"github.com/fatih/color"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

//nolint:gochecknoglobals // Shared palette.
var (
	ok    = color.New(color.FgGreen)
	warn  = color.New(color.FgYellow)
	alert = color.New(color.FgRed, color.Bold)
	muted = color.New(color.FgHiBlack)
	armed = color.New(color.FgCyan)
)

func alarmColor(status domain.AlarmStatus) *color.Color {
	switch status {
	case domain.AlarmStatusAlarm:
		return alert
	case domain.AlarmStatusPending:
		return warn
	default:
		return ok
	}
}

func armingColor(status domain.ArmingStatus) *color.Color {
	if status.IsArmed() {
		return armed
	}

	return muted
}
