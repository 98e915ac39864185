package security

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/catpoint/internal/classifier"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	repo "github.com/oshokin/catpoint/internal/repository/security"
	controller "github.com/oshokin/catpoint/internal/service/security"
)

var errTestStore = errors.New("test store error")

// newTestServer wires a server to a real controller over an in-memory repository.
func newTestServer(detected bool) *Server {
	c := controller.NewController(repo.NewMemoryRepository(), classifier.Fixed(detected))

	return NewServer(c)
}

// TestServer_Validation ensures malformed requests return InvalidArgument errors.
func TestServer_Validation(t *testing.T) {
	t.Parallel()

	s := newTestServer(false)
	ctx := context.Background()

	_, err := s.SetArmingStatus(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.SetArmingStatus(ctx, wrapperspb.String("sleeping"))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.SetAlarmStatus(ctx, wrapperspb.String(""))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.ProcessImage(ctx, wrapperspb.Bytes(nil))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.AddSensor(ctx, NewSensorRequest("", domain.SensorTypeDoor))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.AddSensor(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldName: structpb.NewStringValue("Front door"),
		FieldType: structpb.NewStringValue("ceiling"),
	}})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.ChangeSensorActivation(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldID: structpb.NewStringValue("some-id"),
	}})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.RemoveSensor(ctx, wrapperspb.String(""))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_UnknownSensor verifies that addressing a missing sensor yields NotFound.
func TestServer_UnknownSensor(t *testing.T) {
	t.Parallel()

	s := newTestServer(false)
	ctx := context.Background()

	_, err := s.ChangeSensorActivation(ctx, NewActivationRequest("missing", true))
	require.Equal(t, codes.NotFound, status.Code(err))

	_, err = s.RemoveSensor(ctx, wrapperspb.String("missing"))
	require.Equal(t, codes.NotFound, status.Code(err))
}

// TestServer_Roundtrip drives a full arm, trigger and disarm cycle through the handlers.
func TestServer_Roundtrip(t *testing.T) {
	t.Parallel()

	s := newTestServer(false)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(
		ActorHostnameKey, "test-hostname",
		ActorUsernameKey, "test-user",
	))

	created, err := s.AddSensor(ctx, NewSensorRequest("Front door", domain.SensorTypeDoor))
	require.NoError(t, err)

	sensor, err := DecodeSensor(created)
	require.NoError(t, err)
	require.NotEmpty(t, sensor.ID)
	require.Equal(t, "Front door", sensor.Name)
	require.False(t, sensor.Active)

	resp, err := s.SetArmingStatus(ctx, wrapperspb.String("armed-away"))
	require.NoError(t, err)

	current, err := DecodeStatus(resp)
	require.NoError(t, err)
	require.Equal(t, domain.ArmingStatusArmedAway, current.ArmingStatus)
	require.Equal(t, domain.AlarmStatusNoAlarm, current.AlarmStatus)

	updated, err := s.ChangeSensorActivation(ctx, NewActivationRequest(sensor.ID, true))
	require.NoError(t, err)

	sensor, err = DecodeSensor(updated)
	require.NoError(t, err)
	require.True(t, sensor.Active)

	resp, err = s.GetStatus(ctx, new(emptypb.Empty))
	require.NoError(t, err)

	current, err = DecodeStatus(resp)
	require.NoError(t, err)
	require.Equal(t, domain.AlarmStatusPending, current.AlarmStatus)
	require.Len(t, current.Sensors, 1)

	resp, err = s.SetArmingStatus(ctx, wrapperspb.String("DISARMED"))
	require.NoError(t, err)

	current, err = DecodeStatus(resp)
	require.NoError(t, err)
	require.Equal(t, domain.AlarmStatusNoAlarm, current.AlarmStatus)
	require.Equal(t, domain.ArmingStatusDisarmed, current.ArmingStatus)

	_, err = s.RemoveSensor(ctx, wrapperspb.String(sensor.ID))
	require.NoError(t, err)

	resp, err = s.GetStatus(ctx, new(emptypb.Empty))
	require.NoError(t, err)

	current, err = DecodeStatus(resp)
	require.NoError(t, err)
	require.Empty(t, current.Sensors)
}

// TestServer_ProcessImage checks that an uploaded frame with the subject raises ALARM when armed at home.
func TestServer_ProcessImage(t *testing.T) {
	t.Parallel()

	s := newTestServer(true)
	ctx := context.Background()

	_, err := s.SetArmingStatus(ctx, wrapperspb.String("ARMED_HOME"))
	require.NoError(t, err)

	resp, err := s.ProcessImage(ctx, wrapperspb.Bytes([]byte("frame")))
	require.NoError(t, err)

	current, err := DecodeStatus(resp)
	require.NoError(t, err)
	require.True(t, current.Detected)
	require.Equal(t, domain.AlarmStatusAlarm, current.AlarmStatus)
}

// TestToStatusError covers the mapping of controller errors to gRPC codes.
func TestToStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{name: "not found", err: repo.ErrSensorNotFound, want: codes.NotFound},
		{name: "reentrant", err: controller.ErrReentrantCall, want: codes.FailedPrecondition},
		{name: "canceled", err: context.Canceled, want: codes.Canceled},
		{name: "deadline", err: context.DeadlineExceeded, want: codes.DeadlineExceeded},
		{name: "other", err: errTestStore, want: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.want, status.Code(toStatusError(tt.err)))
		})
	}
}
