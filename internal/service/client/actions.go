package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/service/common"
)

// errBadSwitch is returned for a sensor state other than on or off.
var errBadSwitch = errors.New("sensor state must be on or off")

// ShowStatus prints the current controller status.
func ShowStatus() Action {
	return func(ctx context.Context, client *common.Client, w io.Writer) error {
		status, err := client.Status(ctx)
		if err != nil {
			return err
		}

		PrintStatus(w, status)

		return nil
	}
}

// SetArming changes the arming mode and prints the resulting status.
func SetArming(arming domain.ArmingStatus) Action {
	return func(ctx context.Context, client *common.Client, w io.Writer) error {
		status, err := client.SetArmingStatus(ctx, arming)
		if err != nil {
			return err
		}

		PrintStatus(w, status)

		return nil
	}
}

// SetAlarm overrides the alarm status and prints the resulting status.
func SetAlarm(alarm domain.AlarmStatus) Action {
	return func(ctx context.Context, client *common.Client, w io.Writer) error {
		status, err := client.SetAlarmStatus(ctx, alarm)
		if err != nil {
			return err
		}

		PrintStatus(w, status)

		return nil
	}
}

// AddSensor registers a sensor and prints it.
func AddSensor(name string, sensorType domain.SensorType) Action {
	return func(ctx context.Context, client *common.Client, w io.Writer) error {
		sensor, err := client.AddSensor(ctx, name, sensorType)
		if err != nil {
			return err
		}

		PrintSensor(w, sensor)

		return nil
	}
}

// RemoveSensor drops a sensor by ID.
func RemoveSensor(id string) Action {
	return func(ctx context.Context, client *common.Client, w io.Writer) error {
		if err := client.RemoveSensor(ctx, id); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(w, "Sensor %s removed\n", id)

		return nil
	}
}

// SwitchSensor activates ("on") or deactivates ("off") a sensor and prints the status.
func SwitchSensor(id, state string) (Action, error) {
	var active bool

	switch strings.ToLower(state) {
	case "on":
		active = true
	case "off":
		active = false
	default:
		return nil, fmt.Errorf("%w: %q", errBadSwitch, state)
	}

	return func(ctx context.Context, client *common.Client, w io.Writer) error {
		if _, err := client.ChangeSensorActivation(ctx, id, active); err != nil {
			return err
		}

		status, err := client.Status(ctx)
		if err != nil {
			return err
		}

		PrintStatus(w, status)

		return nil
	}, nil
}

// UploadImage sends an image file for classification and prints the status.
func UploadImage(path string) Action {
	return func(ctx context.Context, client *common.Client, w io.Writer) error {
		image, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}

		status, err := client.ProcessImage(ctx, image)
		if err != nil {
			return err
		}

		PrintStatus(w, status)

		return nil
	}
}

// PrintStatus renders a status view.
func PrintStatus(w io.Writer, status *api.Status) {
	_, _ = fmt.Fprintf(w, "Alarm:    %s\n", alarmColor(status.AlarmStatus).Sprint(status.AlarmStatus))
	_, _ = fmt.Fprintf(w, "Arming:   %s\n", armingColor(status.ArmingStatus).Sprint(status.ArmingStatus))

	camera := "subject not in view"
	if status.Detected {
		camera = warn.Sprint("subject in view")
	}

	_, _ = fmt.Fprintf(w, "Camera:   %s\n", camera)

	if len(status.Sensors) == 0 {
		_, _ = fmt.Fprintln(w, "Sensors:  none")
		return
	}

	_, _ = fmt.Fprintln(w, "Sensors:")

	for _, sensor := range status.Sensors {
		_, _ = fmt.Fprint(w, "  ")
		PrintSensor(w, sensor)
	}
}

// PrintSensor renders one sensor on a single line.
func PrintSensor(w io.Writer, sensor *domain.Sensor) {
	state := ok.Sprint("inactive")
	if sensor.Active {
		state = alert.Sprint("active")
	}

	_, _ = fmt.Fprintf(w, "%-8s %-20s %s  %s\n", state, sensor.Name, sensor.Type, muted.Sprint(sensor.ID))
}
