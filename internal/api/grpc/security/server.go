package security

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	repo "github.com/oshokin/catpoint/internal/repository/security"
	controller "github.com/oshokin/catpoint/internal/service/security"
)

// Metadata keys identifying the caller.
const (
	ActorHostnameKey = "x-catpoint-actor-hostname"
	ActorUsernameKey = "x-catpoint-actor-username"
)

// Service abstracts the controller operations the transport layer depends on.
type Service interface {
	SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error
	SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error
	ProcessImage(ctx context.Context, image []byte) error
	AddSensor(ctx context.Context, sensor *domain.Sensor) error
	RemoveSensorByID(ctx context.Context, id string) error
	ChangeSensorActivationByID(ctx context.Context, id string, active bool) (*domain.Sensor, error)
	AlarmStatus(ctx context.Context) (domain.AlarmStatus, error)
	ArmingStatus(ctx context.Context) (domain.ArmingStatus, error)
	Detected(ctx context.Context) bool
	Sensors(ctx context.Context) ([]*domain.Sensor, error)
}

// Server implements SecurityServiceServer on top of a Service.
type Server struct {
	// service provides the controller operations.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetStatus returns both statuses, the detection flag and all sensors.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.status(withActor(ctx))
}

// SetArmingStatus changes the arming mode.
func (s *Server) SetArmingStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	arming, err := domain.ParseArmingStatus(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	ctx = withActor(ctx)
	if err = s.service.SetArmingStatus(ctx, arming); err != nil {
		return nil, toStatusError(err)
	}

	return s.status(ctx)
}

// SetAlarmStatus overrides the alarm status.
func (s *Server) SetAlarmStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	alarm, err := domain.ParseAlarmStatus(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	ctx = withActor(ctx)
	if err = s.service.SetAlarmStatus(ctx, alarm); err != nil {
		return nil, toStatusError(err)
	}

	return s.status(ctx)
}

// ProcessImage classifies an uploaded frame.
func (s *Server) ProcessImage(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	if len(req.GetValue()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "image is required")
	}

	ctx = withActor(ctx)
	if err := s.service.ProcessImage(ctx, req.GetValue()); err != nil {
		return nil, toStatusError(err)
	}

	return s.status(ctx)
}

// AddSensor creates a sensor and returns it with its new ID.
func (s *Server) AddSensor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := stringField(req, FieldName)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	typeName, err := stringField(req, FieldType)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	sensorType, err := domain.ParseSensorType(typeName)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	sensor := domain.NewSensor(name, sensorType)
	if err = s.service.AddSensor(withActor(ctx), sensor); err != nil {
		return nil, toStatusError(err)
	}

	return EncodeSensor(sensor), nil
}

// RemoveSensor drops the sensor with the given ID.
func (s *Server) RemoveSensor(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "sensor id is required")
	}

	if err := s.service.RemoveSensorByID(withActor(ctx), req.GetValue()); err != nil {
		return nil, toStatusError(err)
	}

	return new(emptypb.Empty), nil
}

// ChangeSensorActivation applies a sensor event and returns the updated sensor.
func (s *Server) ChangeSensorActivation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := stringField(req, FieldID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	active, err := boolField(req, FieldActive)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	sensor, err := s.service.ChangeSensorActivationByID(withActor(ctx), id, active)
	if err != nil {
		return nil, toStatusError(err)
	}

	return EncodeSensor(sensor), nil
}

func (s *Server) status(ctx context.Context) (*structpb.Struct, error) {
	alarm, err := s.service.AlarmStatus(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}

	arming, err := s.service.ArmingStatus(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}

	sensors, err := s.service.Sensors(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}

	return EncodeStatus(&Status{
		AlarmStatus:  alarm,
		ArmingStatus: arming,
		Detected:     s.service.Detected(ctx),
		Sensors:      sensors,
	}), nil
}

// withActor attaches the caller identity from metadata to the context logger.
func withActor(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}

	actor := &domain.Actor{
		Hostname: first(md.Get(ActorHostnameKey)),
		Username: first(md.Get(ActorUsernameKey)),
	}

	if actor.Hostname == "" && actor.Username == "" {
		return ctx
	}

	return logger.WithKV(ctx, "actor", actor.String())
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}

	return values[0]
}

// toStatusError maps controller errors to gRPC status codes.
func toStatusError(err error) error {
	switch {
	case errors.Is(err, repo.ErrSensorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, controller.ErrReentrantCall):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, "unable to apply change")
	}
}
