package notify

import (
	"context"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
)

// LogListener writes every notification to the log.
type LogListener struct{}

// NewLogListener creates a LogListener.
func NewLogListener() *LogListener {
	return new(LogListener)
}

// OnAlarmStatusChanged logs the new status, at warning level for ALARM.
func (l *LogListener) OnAlarmStatusChanged(ctx context.Context, status domain.AlarmStatus) {
	switch status {
	case domain.AlarmStatusAlarm:
		logger.WarnKV(ctx, "ALARM! The system has been breached", "alarm_status", status.String())
	case domain.AlarmStatusPending:
		logger.InfoKV(ctx, "Alarm pending, waiting for confirmation", "alarm_status", status.String())
	default:
		logger.InfoKV(ctx, "Cool and good", "alarm_status", status.String())
	}
}

// OnDetectionResult logs whether the latest frame contained the subject.
func (l *LogListener) OnDetectionResult(ctx context.Context, detected bool) {
	logger.DebugKV(ctx, "Camera frame classified", "detected", detected)
}
