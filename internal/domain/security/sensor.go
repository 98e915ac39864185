package security

import "github.com/google/uuid"

// Sensor is a named binary-state device.
//
// Inside a repository a sensor is identified by its pointer: two sensors with the
// same name and type are still distinct. ID only lets remote callers address it.
type Sensor struct {
	// ID is the stable external handle of the sensor.
	ID string
	// Name is the human readable label, e.g. "Front door".
	Name string
	// Type is the kind of device.
	Type SensorType
	// Active is true while the sensor is triggered.
	Active bool
}

// NewSensor creates an inactive sensor with a fresh ID.
func NewSensor(name string, sensorType SensorType) *Sensor {
	return &Sensor{
		ID:   uuid.NewString(),
		Name: name,
		Type: sensorType,
	}
}

// Clone returns a copy of the sensor.
func (s *Sensor) Clone() *Sensor {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// Actor identifies who issued a command to the controller.
type Actor struct {
	// Hostname is the machine name where the command originated.
	Hostname string
	// Username is the system user who issued the command.
	Username string
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// String renders the actor as username@hostname.
func (a *Actor) String() string {
	if a == nil {
		return "<unknown>"
	}

	return a.Username + "@" + a.Hostname
}
