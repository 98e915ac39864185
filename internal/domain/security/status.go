package security

import (
	"errors"
	"fmt"
	"strings"
)

// ArmingStatus is the operating mode of the system.
type ArmingStatus int

const (
	// ArmingStatusDisarmed means sensors and camera never raise an alarm.
	ArmingStatusDisarmed ArmingStatus = iota
	// ArmingStatusArmedHome means occupants are home; the camera is coupled to the alarm.
	ArmingStatusArmedHome
	// ArmingStatusArmedAway means the premises are empty.
	ArmingStatusArmedAway
)

// AlarmStatus is the current threat level.
type AlarmStatus int

const (
	// AlarmStatusNoAlarm means nothing is happening.
	AlarmStatusNoAlarm AlarmStatus = iota
	// AlarmStatusPending means one sensor fired and confirmation is awaited.
	AlarmStatusPending
	// AlarmStatusAlarm means the alarm is sounding. Only a disarm or a camera frame clears it.
	AlarmStatusAlarm
)

// SensorType is the kind of hardware behind a sensor.
type SensorType int

const (
	// SensorTypeDoor is a door contact.
	SensorTypeDoor SensorType = iota
	// SensorTypeWindow is a window contact.
	SensorTypeWindow
	// SensorTypeMotion is a motion detector.
	SensorTypeMotion
)

var (
	// ErrUnknownArmingStatus is returned when an arming status cannot be parsed.
	ErrUnknownArmingStatus = errors.New("unknown arming status")
	// ErrUnknownAlarmStatus is returned when an alarm status cannot be parsed.
	ErrUnknownAlarmStatus = errors.New("unknown alarm status")
	// ErrUnknownSensorType is returned when a sensor type cannot be parsed.
	ErrUnknownSensorType = errors.New("unknown sensor type")
)

//nolint:gochecknoglobals // Lookup tables for enum names.
var (
	armingStatusNames = map[ArmingStatus]string{
		ArmingStatusDisarmed:  "DISARMED",
		ArmingStatusArmedHome: "ARMED_HOME",
		ArmingStatusArmedAway: "ARMED_AWAY",
	}
	alarmStatusNames = map[AlarmStatus]string{
		AlarmStatusNoAlarm: "NO_ALARM",
		AlarmStatusPending: "PENDING_ALARM",
		AlarmStatusAlarm:   "ALARM",
	}
	sensorTypeNames = map[SensorType]string{
		SensorTypeDoor:   "DOOR",
		SensorTypeWindow: "WINDOW",
		SensorTypeMotion: "MOTION",
	}
)

// String returns the canonical upper-case name.
func (s ArmingStatus) String() string {
	if name, ok := armingStatusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("ArmingStatus(%d)", int(s))
}

// IsArmed reports whether the status is anything other than disarmed.
func (s ArmingStatus) IsArmed() bool {
	return s != ArmingStatusDisarmed
}

// String returns the canonical upper-case name.
func (s AlarmStatus) String() string {
	if name, ok := alarmStatusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("AlarmStatus(%d)", int(s))
}

// Escalate returns the next threat level. ALARM does not escalate further.
func (s AlarmStatus) Escalate() AlarmStatus {
	switch s {
	case AlarmStatusNoAlarm:
		return AlarmStatusPending
	default:
		return AlarmStatusAlarm
	}
}

// String returns the canonical upper-case name.
func (t SensorType) String() string {
	if name, ok := sensorTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("SensorType(%d)", int(t))
}

// ParseArmingStatus converts a name such as "armed_home" or "ARMED-AWAY" to ArmingStatus.
func ParseArmingStatus(s string) (ArmingStatus, error) {
	name := normalize(s)
	for status, candidate := range armingStatusNames {
		if candidate == name {
			return status, nil
		}
	}

	return ArmingStatusDisarmed, fmt.Errorf("%w: %q", ErrUnknownArmingStatus, s)
}

// ParseAlarmStatus converts a name such as "pending_alarm" to AlarmStatus.
func ParseAlarmStatus(s string) (AlarmStatus, error) {
	name := normalize(s)
	for status, candidate := range alarmStatusNames {
		if candidate == name {
			return status, nil
		}
	}

	return AlarmStatusNoAlarm, fmt.Errorf("%w: %q", ErrUnknownAlarmStatus, s)
}

// ParseSensorType converts a name such as "door" to SensorType.
func ParseSensorType(s string) (SensorType, error) {
	name := normalize(s)
	for sensorType, candidate := range sensorTypeNames {
		if candidate == name {
			return sensorType, nil
		}
	}

	return SensorTypeDoor, fmt.Errorf("%w: %q", ErrUnknownSensorType, s)
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_")
}
