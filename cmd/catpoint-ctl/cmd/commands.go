package cmd

import (
	"github.com/spf13/cobra"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/service/client"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show alarm status, arming mode, camera result and sensors.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, client.ShowStatus())
		},
	}
}

func armCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "arm home|away",
		Short:     "Arm the system.",
		Long:      "Arms the system. Arming deactivates every sensor; arming at home raises the alarm at once if the camera already sees the subject.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"home", "away"},
		RunE: func(cmd *cobra.Command, args []string) error {
			arming, err := domain.ParseArmingStatus("armed_" + args[0])
			if err != nil {
				return err
			}

			return run(cmd, client.SetArming(arming))
		},
	}
}

func disarmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disarm",
		Short: "Disarm the system and clear the alarm.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, client.SetArming(domain.ArmingStatusDisarmed))
		},
	}
}

func alarmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alarm no_alarm|pending_alarm|alarm",
		Short: "Override the alarm status.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alarm, err := domain.ParseAlarmStatus(args[0])
			if err != nil {
				return err
			}

			return run(cmd, client.SetAlarm(alarm))
		},
	}
}

func sensorCmd() *cobra.Command {
	sensor := &cobra.Command{
		Use:   "sensor",
		Short: "Manage sensors.",
	}

	sensor.AddCommand(
		&cobra.Command{
			Use:   "add NAME door|window|motion",
			Short: "Add a sensor.",
			Args:  cobra.ExactArgs(2), //nolint:mnd // Name and type.
			RunE: func(cmd *cobra.Command, args []string) error {
				sensorType, err := domain.ParseSensorType(args[1])
				if err != nil {
					return err
				}

				return run(cmd, client.AddSensor(args[0], sensorType))
			},
		},
		&cobra.Command{
			Use:   "remove ID",
			Short: "Remove a sensor.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, client.RemoveSensor(args[0]))
			},
		},
		&cobra.Command{
			Use:   "set ID on|off",
			Short: "Activate or deactivate a sensor.",
			Args:  cobra.ExactArgs(2), //nolint:mnd // ID and state.
			RunE: func(cmd *cobra.Command, args []string) error {
				action, err := client.SwitchSensor(args[0], args[1])
				if err != nil {
					return err
				}

				return run(cmd, action)
			},
		},
	)

	return sensor
}

func imageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "image FILE",
		Short: "Upload a camera frame for classification.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, client.UploadImage(args[0]))
		},
	}
}
