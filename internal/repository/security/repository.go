package security

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// Repository defines the storage capability the controller depends on.
//
// Sensors returns the stored pointers themselves: callers mutate a sensor and then
// call UpdateSensor to persist it. Adding a present sensor or removing an absent
// one is a no-op.
type Repository interface {
	Sensors(ctx context.Context) ([]*domain.Sensor, error)
	SensorByID(ctx context.Context, id string) (*domain.Sensor, error)
	AddSensor(ctx context.Context, sensor *domain.Sensor) error
	RemoveSensor(ctx context.Context, sensor *domain.Sensor) error
	UpdateSensor(ctx context.Context, sensor *domain.Sensor) error
	AlarmStatus(ctx context.Context) (domain.AlarmStatus, error)
	SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error
	ArmingStatus(ctx context.Context) (domain.ArmingStatus, error)
	SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error
}

var (
	// ErrNotFound is returned when the state file does not exist yet.
	ErrNotFound = errors.New("state not found")
	// ErrSensorNotFound is returned when a sensor is not stored.
	ErrSensorNotFound = errors.New("sensor not found")
	// errNilSensor is returned when a nil sensor is passed in.
	errNilSensor = errors.New("sensor is nil")
)

// Snapshot is a detached copy of the stored state.
type Snapshot struct {
	Sensors      []*domain.Sensor
	AlarmStatus  domain.AlarmStatus
	ArmingStatus domain.ArmingStatus
}

// MemoryRepository keeps sensors and statuses in memory.
type MemoryRepository struct {
	// mu protects every field below.
	mu sync.RWMutex
	// sensors is kept in insertion order.
	sensors      []*domain.Sensor
	alarmStatus  domain.AlarmStatus
	armingStatus domain.ArmingStatus

	// persist, when set, is called after every change with the lock held.
	persist func(snapshot *Snapshot) error
}

// NewMemoryRepository creates an empty repository: disarmed, no alarm, no sensors.
func NewMemoryRepository() *MemoryRepository {
	return new(MemoryRepository)
}

// Sensors returns the stored sensors in insertion order.
func (r *MemoryRepository) Sensors(context.Context) ([]*domain.Sensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.sensors), nil
}

// SensorByID returns the stored sensor with the given ID.
func (r *MemoryRepository) SensorByID(_ context.Context, id string) (*domain.Sensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sensor := range r.sensors {
		if sensor.ID == id {
			return sensor, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrSensorNotFound, id)
}

// AddSensor stores the sensor unless this exact sensor is already stored.
func (r *MemoryRepository) AddSensor(_ context.Context, sensor *domain.Sensor) error {
	if sensor == nil {
		return errNilSensor
	}

	return r.mutate(func() (func(), bool) {
		if slices.Contains(r.sensors, sensor) {
			return nil, false
		}

		r.sensors = append(r.sensors, sensor)

		return func() { r.sensors = r.sensors[:len(r.sensors)-1] }, true
	})
}

// RemoveSensor drops the sensor if it is stored.
func (r *MemoryRepository) RemoveSensor(_ context.Context, sensor *domain.Sensor) error {
	if sensor == nil {
		return errNilSensor
	}

	return r.mutate(func() (func(), bool) {
		idx := slices.Index(r.sensors, sensor)
		if idx < 0 {
			return nil, false
		}

		previous := slices.Clone(r.sensors)
		r.sensors = slices.Delete(r.sensors, idx, idx+1)

		return func() { r.sensors = previous }, true
	})
}

// UpdateSensor persists fields of a stored sensor that the caller has mutated.
// It returns ErrSensorNotFound when sensor is not one of the stored pointers.
func (r *MemoryRepository) UpdateSensor(_ context.Context, sensor *domain.Sensor) error {
	if sensor == nil {
		return errNilSensor
	}

	var stored bool

	err := r.mutate(func() (func(), bool) {
		stored = slices.Contains(r.sensors, sensor)

		return nil, stored
	})
	if err != nil {
		return err
	}

	if !stored {
		return fmt.Errorf("%w: %q", ErrSensorNotFound, sensor.Name)
	}

	return nil
}

// AlarmStatus returns the stored alarm status.
func (r *MemoryRepository) AlarmStatus(context.Context) (domain.AlarmStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.alarmStatus, nil
}

// SetAlarmStatus stores the alarm status.
func (r *MemoryRepository) SetAlarmStatus(_ context.Context, status domain.AlarmStatus) error {
	return r.mutate(func() (func(), bool) {
		previous := r.alarmStatus
		r.alarmStatus = status

		return func() { r.alarmStatus = previous }, true
	})
}

// ArmingStatus returns the stored arming status.
func (r *MemoryRepository) ArmingStatus(context.Context) (domain.ArmingStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.armingStatus, nil
}

// SetArmingStatus stores the arming status.
func (r *MemoryRepository) SetArmingStatus(_ context.Context, status domain.ArmingStatus) error {
	return r.mutate(func() (func(), bool) {
		previous := r.armingStatus
		r.armingStatus = status

		return func() { r.armingStatus = previous }, true
	})
}

// Snapshot returns a detached copy of the stored state.
func (r *MemoryRepository) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshotLocked()
}

// restore replaces the stored state with the snapshot contents.
func (r *MemoryRepository) restore(snapshot *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sensors = snapshot.Sensors
	r.alarmStatus = snapshot.AlarmStatus
	r.armingStatus = snapshot.ArmingStatus
}

// mutate applies a change and persists it. apply reports whether anything changed
// and returns an undo used when persistence fails.
func (r *MemoryRepository) mutate(apply func() (undo func(), changed bool)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	undo, changed := apply()
	if !changed || r.persist == nil {
		return nil
	}

	if err := r.persist(r.snapshotLocked()); err != nil {
		if undo != nil {
			undo()
		}

		return fmt.Errorf("persist state: %w", err)
	}

	return nil
}

func (r *MemoryRepository) snapshotLocked() *Snapshot {
	sensors := make([]*domain.Sensor, 0, len(r.sensors))
	for _, sensor := range r.sensors {
		sensors = append(sensors, sensor.Clone())
	}

	return &Snapshot{
		Sensors:      sensors,
		AlarmStatus:  r.alarmStatus,
		ArmingStatus: r.armingStatus,
	}
}
