//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// Client wraps the gRPC SecurityService with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the catpoint server.
	conn grpc.ClientConnInterface
	// closer releases conn, nil when the connection is owned elsewhere.
	closer func() error

	// actor is sent with every call for the server's audit log.
	actor *domain.Actor
	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor attaches the caller identity to every call.
func WithActor(actor *domain.Actor) Option {
	return func(c *Client) {
		c.actor = actor.Clone()
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errImageRequired is returned when an empty image is submitted.
	errImageRequired = errors.New("image must not be empty")
	// errSensorIDRequired is returned when a sensor ID is missing.
	errSensorIDRequired = errors.New("sensor id must be provided")
)

// Dial establishes a gRPC connection to the catpoint server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial catpoint server: %w", err)
	}

	client := NewClient(conn, opts...)
	client.closer = conn.Close

	return client, nil
}

// NewClient wraps an existing connection. Close does not close conn.
func NewClient(conn grpc.ClientConnInterface, opts ...Option) *Client {
	client := &Client{
		conn:        conn,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}

	return c.closer()
}

// Status retrieves both statuses, the detection flag and all sensors.
func (c *Client) Status(ctx context.Context) (*api.Status, error) {
	resp := new(structpb.Struct)
	if err := c.invoke(ctx, api.GetStatusMethod, new(emptypb.Empty), resp); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	return api.DecodeStatus(resp)
}

// SetArmingStatus changes the remote arming mode.
func (c *Client) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) (*api.Status, error) {
	resp := new(structpb.Struct)
	if err := c.invoke(ctx, api.SetArmingStatusMethod, wrapperspb.String(status.String()), resp); err != nil {
		return nil, fmt.Errorf("set arming status: %w", err)
	}

	return api.DecodeStatus(resp)
}

// SetAlarmStatus overrides the remote alarm status.
func (c *Client) SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) (*api.Status, error) {
	resp := new(structpb.Struct)
	if err := c.invoke(ctx, api.SetAlarmStatusMethod, wrapperspb.String(status.String()), resp); err != nil {
		return nil, fmt.Errorf("set alarm status: %w", err)
	}

	return api.DecodeStatus(resp)
}

// ProcessImage uploads a camera frame for classification.
func (c *Client) ProcessImage(ctx context.Context, image []byte) (*api.Status, error) {
	if len(image) == 0 {
		return nil, errImageRequired
	}

	resp := new(structpb.Struct)
	if err := c.invoke(ctx, api.ProcessImageMethod, wrapperspb.Bytes(image), resp); err != nil {
		return nil, fmt.Errorf("process image: %w", err)
	}

	return api.DecodeStatus(resp)
}

// AddSensor registers a new sensor and returns it with its assigned ID.
func (c *Client) AddSensor(ctx context.Context, name string, sensorType domain.SensorType) (*domain.Sensor, error) {
	resp := new(structpb.Struct)
	if err := c.invoke(ctx, api.AddSensorMethod, api.NewSensorRequest(name, sensorType), resp); err != nil {
		return nil, fmt.Errorf("add sensor: %w", err)
	}

	return api.DecodeSensor(resp)
}

// RemoveSensor drops the sensor with the given ID.
func (c *Client) RemoveSensor(ctx context.Context, id string) error {
	if id == "" {
		return errSensorIDRequired
	}

	if err := c.invoke(ctx, api.RemoveSensorMethod, wrapperspb.String(id), new(emptypb.Empty)); err != nil {
		return fmt.Errorf("remove sensor: %w", err)
	}

	return nil
}

// ChangeSensorActivation activates or deactivates a sensor.
func (c *Client) ChangeSensorActivation(ctx context.Context, id string, active bool) (*domain.Sensor, error) {
	if id == "" {
		return nil, errSensorIDRequired
	}

	resp := new(structpb.Struct)
	if err := c.invoke(ctx, api.ChangeSensorActivationMethod, api.NewActivationRequest(id, active), resp); err != nil {
		return nil, fmt.Errorf("change sensor activation: %w", err)
	}

	return api.DecodeSensor(resp)
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if c.actor != nil {
		callCtx = metadata.AppendToOutgoingContext(callCtx,
			api.ActorHostnameKey, c.actor.Hostname,
			api.ActorUsernameKey, c.actor.Username,
		)
	}

	return c.conn.Invoke(callCtx, method, req, resp)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
