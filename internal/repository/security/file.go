package security

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// FileRepository is a MemoryRepository whose every change is written to a JSON file.
// JSON is produced and consumed via protobuf JSON (protojson) over structpb values,
// the same encoding the gRPC API uses.
type FileRepository struct {
	*MemoryRepository

	// path is the filesystem location of the JSON state file.
	path string
}

// Field names of the state file.
const (
	fieldSensors      = "sensors"
	fieldAlarmStatus  = "alarm_status"
	fieldArmingStatus = "arming_status"
	fieldID           = "id"
	fieldName         = "name"
	fieldType         = "type"
	fieldActive       = "active"
)

// errMalformedState is returned when the state file has an unexpected shape.
var errMalformedState = errors.New("malformed state file")

// NewFileRepository creates a repository that writes JSON at the provided path.
// Call Load to pick up a previously saved state.
func NewFileRepository(path string) *FileRepository {
	r := &FileRepository{
		MemoryRepository: NewMemoryRepository(),
		path:             filepath.Clean(path),
	}

	r.persist = r.save

	return r
}

// Path returns the location of the state file.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the state from disk into memory.
// It returns ErrNotFound when the file does not exist yet; the repository then keeps its defaults.
func (r *FileRepository) Load(_ context.Context) error {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}

		return fmt.Errorf("read state file: %w", err)
	}

	var state structpb.Struct
	if err = protojson.Unmarshal(contents, &state); err != nil {
		return fmt.Errorf("decode state file: %w", err)
	}

	snapshot, err := fromStruct(&state)
	if err != nil {
		return err
	}

	r.restore(snapshot)

	return nil
}

// save writes the snapshot to disk.
func (r *FileRepository) save(snapshot *Snapshot) error {
	state, err := toStruct(snapshot)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// toStruct converts a snapshot into the structpb document stored on disk.
func toStruct(snapshot *Snapshot) (*structpb.Struct, error) {
	sensors := make([]any, 0, len(snapshot.Sensors))
	for _, sensor := range snapshot.Sensors {
		sensors = append(sensors, map[string]any{
			fieldID:     sensor.ID,
			fieldName:   sensor.Name,
			fieldType:   sensor.Type.String(),
			fieldActive: sensor.Active,
		})
	}

	return structpb.NewStruct(map[string]any{
		fieldAlarmStatus:  snapshot.AlarmStatus.String(),
		fieldArmingStatus: snapshot.ArmingStatus.String(),
		fieldSensors:      sensors,
	})
}

// fromStruct converts the stored document back into a snapshot.
func fromStruct(state *structpb.Struct) (*Snapshot, error) {
	fields := state.GetFields()

	alarmStatus, err := domain.ParseAlarmStatus(fields[fieldAlarmStatus].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedState, err)
	}

	armingStatus, err := domain.ParseArmingStatus(fields[fieldArmingStatus].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedState, err)
	}

	snapshot := &Snapshot{
		AlarmStatus:  alarmStatus,
		ArmingStatus: armingStatus,
	}

	for _, value := range fields[fieldSensors].GetListValue().GetValues() {
		sensorFields := value.GetStructValue().GetFields()
		if sensorFields == nil {
			return nil, fmt.Errorf("%w: sensor entry is not an object", errMalformedState)
		}

		sensorType, err := domain.ParseSensorType(sensorFields[fieldType].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errMalformedState, err)
		}

		snapshot.Sensors = append(snapshot.Sensors, &domain.Sensor{
			ID:     sensorFields[fieldID].GetStringValue(),
			Name:   sensorFields[fieldName].GetStringValue(),
			Type:   sensorType,
			Active: sensorFields[fieldActive].GetBoolValue(),
		})
	}

	return snapshot, nil
}
