package security

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// Wire field names.
const (
	FieldAlarmStatus  = "alarm_status"
	FieldArmingStatus = "arming_status"
	FieldDetected     = "detected"
	FieldSensors      = "sensors"
	FieldID           = "id"
	FieldName         = "name"
	FieldType         = "type"
	FieldActive       = "active"
)

// errMissingField is returned when a required field is absent or has the wrong kind.
var errMissingField = errors.New("missing field")

// Status is the decoded view of the controller returned by most calls.
type Status struct {
	AlarmStatus  domain.AlarmStatus
	ArmingStatus domain.ArmingStatus
	Detected     bool
	Sensors      []*domain.Sensor
}

// EncodeStatus converts a status view to its wire form.
func EncodeStatus(status *Status) *structpb.Struct {
	sensors := make([]*structpb.Value, 0, len(status.Sensors))
	for _, sensor := range status.Sensors {
		sensors = append(sensors, structpb.NewStructValue(EncodeSensor(sensor)))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldAlarmStatus:  structpb.NewStringValue(status.AlarmStatus.String()),
		FieldArmingStatus: structpb.NewStringValue(status.ArmingStatus.String()),
		FieldDetected:     structpb.NewBoolValue(status.Detected),
		FieldSensors:      structpb.NewListValue(&structpb.ListValue{Values: sensors}),
	}}
}

// DecodeStatus converts the wire form back into a status view.
func DecodeStatus(msg *structpb.Struct) (*Status, error) {
	fields := msg.GetFields()

	alarmStatus, err := domain.ParseAlarmStatus(fields[FieldAlarmStatus].GetStringValue())
	if err != nil {
		return nil, err
	}

	armingStatus, err := domain.ParseArmingStatus(fields[FieldArmingStatus].GetStringValue())
	if err != nil {
		return nil, err
	}

	status := &Status{
		AlarmStatus:  alarmStatus,
		ArmingStatus: armingStatus,
		Detected:     fields[FieldDetected].GetBoolValue(),
	}

	for _, value := range fields[FieldSensors].GetListValue().GetValues() {
		sensor, err := DecodeSensor(value.GetStructValue())
		if err != nil {
			return nil, err
		}

		status.Sensors = append(status.Sensors, sensor)
	}

	return status, nil
}

// EncodeSensor converts a sensor to its wire form.
func EncodeSensor(sensor *domain.Sensor) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldID:     structpb.NewStringValue(sensor.ID),
		FieldName:   structpb.NewStringValue(sensor.Name),
		FieldType:   structpb.NewStringValue(sensor.Type.String()),
		FieldActive: structpb.NewBoolValue(sensor.Active),
	}}
}

// DecodeSensor converts the wire form back into a sensor.
func DecodeSensor(msg *structpb.Struct) (*domain.Sensor, error) {
	fields := msg.GetFields()

	id, ok := fields[FieldID].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errMissingField, FieldID)
	}

	sensorType, err := domain.ParseSensorType(fields[FieldType].GetStringValue())
	if err != nil {
		return nil, err
	}

	return &domain.Sensor{
		ID:     id.StringValue,
		Name:   fields[FieldName].GetStringValue(),
		Type:   sensorType,
		Active: fields[FieldActive].GetBoolValue(),
	}, nil
}

// NewSensorRequest builds the AddSensor request.
func NewSensorRequest(name string, sensorType domain.SensorType) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldName: structpb.NewStringValue(name),
		FieldType: structpb.NewStringValue(sensorType.String()),
	}}
}

// NewActivationRequest builds the ChangeSensorActivation request.
func NewActivationRequest(id string, active bool) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldID:     structpb.NewStringValue(id),
		FieldActive: structpb.NewBoolValue(active),
	}}
}

// stringField returns a required string field.
func stringField(msg *structpb.Struct, name string) (string, error) {
	value, ok := msg.GetFields()[name].GetKind().(*structpb.Value_StringValue)
	if !ok || value.StringValue == "" {
		return "", fmt.Errorf("%w: %s", errMissingField, name)
	}

	return value.StringValue, nil
}

// boolField returns a required bool field.
func boolField(msg *structpb.Struct, name string) (bool, error) {
	value, ok := msg.GetFields()[name].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("%w: %s", errMissingField, name)
	}

	return value.BoolValue, nil
}
