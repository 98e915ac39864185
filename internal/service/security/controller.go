package security

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/catpoint/internal/classifier"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	repo "github.com/oshokin/catpoint/internal/repository/security"
)

// Listener receives controller notifications.
//
// Callbacks run synchronously while the controller holds its lock. The ctx passed
// to a callback is marked as belonging to that notification: mutating controller
// calls made with it fail with ErrReentrantCall, read accessors still work.
type Listener interface {
	OnAlarmStatusChanged(ctx context.Context, status domain.AlarmStatus)
	OnDetectionResult(ctx context.Context, detected bool)
}

// DefaultClassifyTimeout bounds a single classifier call.
const DefaultClassifyTimeout = 10 * time.Second

var (
	// ErrReentrantCall is returned when a listener calls a mutating operation from its callback.
	ErrReentrantCall = errors.New("reentrant controller call from listener")
	// errNilSensor is returned when a nil sensor is passed in.
	errNilSensor = errors.New("sensor is nil")
	// errClassifierPanic wraps a recovered classifier panic.
	errClassifierPanic = errors.New("classifier panicked")
)

// notifyingKey marks a context handed to listeners by a specific controller.
type notifyingKey struct{}

// Controller derives the alarm status from sensors, the arming mode and camera frames.
type Controller struct {
	// repo holds sensors and both statuses.
	repo repo.Repository
	// classifier labels camera frames.
	classifier classifier.Classifier
	// classifyTimeout bounds one classifier call.
	classifyTimeout time.Duration

	// mu serializes every state transition.
	mu sync.Mutex
	// detected is the result of the most recent classification. Guarded by mu.
	detected bool

	// listenersMu protects listeners, which are kept in registration order.
	listenersMu sync.RWMutex
	listeners   []Listener
}

// Option configures the controller.
type Option func(*Controller)

// WithClassifyTimeout sets the upper bound of a single classifier call.
func WithClassifyTimeout(timeout time.Duration) Option {
	return func(c *Controller) {
		if timeout > 0 {
			c.classifyTimeout = timeout
		}
	}
}

// WithListeners registers listeners at construction time.
func WithListeners(listeners ...Listener) Option {
	return func(c *Controller) {
		for _, l := range listeners {
			c.AddListener(l)
		}
	}
}

// NewController wires a controller to its repository and classifier.
func NewController(repository repo.Repository, imageClassifier classifier.Classifier, opts ...Option) *Controller {
	c := &Controller{
		repo:            repository,
		classifier:      imageClassifier,
		classifyTimeout: DefaultClassifyTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetArmingStatus changes the operating mode.
//
// Disarming clears the detection flag and forces NO_ALARM. Arming deactivates every
// sensor and, for ARMED_HOME with the subject already in view, raises ALARM.
// The requested status is stored last in both cases.
func (c *Controller) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error {
	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	ctx = logger.WithKV(ctx, "arming_status", status.String())

	if status.IsArmed() {
		var cleared []*domain.Sensor

		cleared, err = c.deactivateSensorsLocked(ctx)
		if err != nil {
			return err
		}

		if err = c.armLocked(ctx, status); err != nil {
			c.reactivateSensorsLocked(ctx, cleared)

			return err
		}
	} else {
		c.detected = false

		if err = c.setAlarmStatusLocked(ctx, domain.AlarmStatusNoAlarm); err != nil {
			return err
		}

		if err = c.repo.SetArmingStatus(ctx, status); err != nil {
			return fmt.Errorf("store arming status: %w", err)
		}
	}

	logger.Info(ctx, "Arming status changed")

	return nil
}

// armLocked raises ALARM for ARMED_HOME with the subject in view and stores status.
func (c *Controller) armLocked(ctx context.Context, status domain.ArmingStatus) error {
	if status == domain.ArmingStatusArmedHome && c.detected {
		if err := c.setAlarmStatusLocked(ctx, domain.AlarmStatusAlarm); err != nil {
			return err
		}
	}

	if err := c.repo.SetArmingStatus(ctx, status); err != nil {
		return fmt.Errorf("store arming status: %w", err)
	}

	return nil
}

// ProcessImage classifies a camera frame and applies the result.
//
// The classifier runs without the controller lock and is bounded by the classify
// timeout. Classifier errors, timeouts and panics count as "subject absent".
// If ctx itself is canceled meanwhile, nothing is applied and ctx.Err() is returned.
func (c *Controller) ProcessImage(ctx context.Context, image []byte) error {
	if c.isNotifying(ctx) {
		return ErrReentrantCall
	}

	detected := c.classify(ctx, image)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("process image: %w", err)
	}

	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	ctx = logger.WithKV(ctx, "detected", detected)
	c.detected = detected

	arming, err := c.repo.ArmingStatus(ctx)
	if err != nil {
		return fmt.Errorf("load arming status: %w", err)
	}

	switch {
	case !arming.IsArmed():
		// Classification while disarmed never raises an alarm.
		err = c.setAlarmStatusLocked(ctx, domain.AlarmStatusNoAlarm)
	case detected && arming == domain.ArmingStatusArmedHome:
		err = c.setAlarmStatusLocked(ctx, domain.AlarmStatusAlarm)
	case !detected:
		var active bool

		active, err = c.anySensorActiveLocked(ctx)
		if err == nil && !active {
			err = c.setAlarmStatusLocked(ctx, domain.AlarmStatusNoAlarm)
		}
	}

	if err != nil {
		return err
	}

	c.notifyDetection(ctx, detected)

	return nil
}

// ChangeSensorActivation applies a sensor activation event.
//
// While ALARM is sounding every sensor event is ignored. Re-activating an active
// sensor during PENDING_ALARM escalates to ALARM; other repeats are no-ops.
// The sensor may be a copy returned by Sensors: it is matched to the stored one by
// ID and its Active flag is updated to the stored value afterwards.
func (c *Controller) ChangeSensorActivation(ctx context.Context, sensor *domain.Sensor, active bool) error {
	if sensor == nil {
		return errNilSensor
	}

	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	stored, err := c.storedSensorLocked(ctx, sensor)
	if err != nil {
		return err
	}

	err = c.changeSensorActivationLocked(ctx, stored, active)
	sensor.Active = stored.Active

	return err
}

// ChangeSensorActivationByID looks the sensor up by ID, applies the event and
// returns a copy of the sensor afterwards.
func (c *Controller) ChangeSensorActivationByID(ctx context.Context, id string, active bool) (*domain.Sensor, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sensor, err := c.repo.SensorByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err = c.changeSensorActivationLocked(ctx, sensor, active); err != nil {
		return nil, err
	}

	return sensor.Clone(), nil
}

// SetAlarmStatus stores the alarm status and notifies every listener.
func (c *Controller) SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error {
	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return c.setAlarmStatusLocked(ctx, status)
}

// AlarmStatus returns the stored alarm status.
func (c *Controller) AlarmStatus(ctx context.Context) (domain.AlarmStatus, error) {
	defer c.rlock(ctx)()

	return c.repo.AlarmStatus(ctx)
}

// ArmingStatus returns the stored arming status.
func (c *Controller) ArmingStatus(ctx context.Context) (domain.ArmingStatus, error) {
	defer c.rlock(ctx)()

	return c.repo.ArmingStatus(ctx)
}

// Detected returns the result of the most recent classification.
func (c *Controller) Detected(ctx context.Context) bool {
	defer c.rlock(ctx)()

	return c.detected
}

// Sensors returns copies of the stored sensors.
func (c *Controller) Sensors(ctx context.Context) ([]*domain.Sensor, error) {
	defer c.rlock(ctx)()

	sensors, err := c.repo.Sensors(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.Sensor, 0, len(sensors))
	for _, sensor := range sensors {
		result = append(result, sensor.Clone())
	}

	return result, nil
}

// SensorByID returns a copy of the sensor with the given ID.
func (c *Controller) SensorByID(ctx context.Context, id string) (*domain.Sensor, error) {
	defer c.rlock(ctx)()

	sensor, err := c.repo.SensorByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return sensor.Clone(), nil
}

// AddSensor stores a sensor. Adding a sensor that is already stored, or a copy
// of one, is a no-op.
func (c *Controller) AddSensor(ctx context.Context, sensor *domain.Sensor) error {
	if sensor == nil {
		return errNilSensor
	}

	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	_, err = c.storedSensorLocked(ctx, sensor)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, repo.ErrSensorNotFound):
		return err
	}

	return c.repo.AddSensor(ctx, sensor)
}

// RemoveSensor drops a sensor, which may be a copy returned by Sensors.
// Removing a sensor that is not stored is a no-op.
func (c *Controller) RemoveSensor(ctx context.Context, sensor *domain.Sensor) error {
	if sensor == nil {
		return errNilSensor
	}

	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	stored, err := c.storedSensorLocked(ctx, sensor)
	switch {
	case errors.Is(err, repo.ErrSensorNotFound):
		return nil
	case err != nil:
		return err
	}

	return c.repo.RemoveSensor(ctx, stored)
}

// RemoveSensorByID drops the sensor with the given ID.
func (c *Controller) RemoveSensorByID(ctx context.Context, id string) error {
	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	sensor, err := c.repo.SensorByID(ctx, id)
	if err != nil {
		return err
	}

	return c.repo.RemoveSensor(ctx, sensor)
}

// AddListener registers a listener. Registering the same listener twice is a no-op.
func (c *Controller) AddListener(l Listener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	if l == nil || slices.Contains(c.listeners, l) {
		return
	}

	c.listeners = append(c.listeners, l)
}

// RemoveListener unregisters a listener. Unknown listeners are ignored.
func (c *Controller) RemoveListener(l Listener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	c.listeners = slices.DeleteFunc(c.listeners, func(existing Listener) bool {
		return existing == l
	})
}

func (c *Controller) changeSensorActivationLocked(ctx context.Context, sensor *domain.Sensor, active bool) error {
	ctx = logger.WithFields(ctx, "sensor", sensor.Name, "active", active)

	alarm, err := c.repo.AlarmStatus(ctx)
	if err != nil {
		return fmt.Errorf("load alarm status: %w", err)
	}

	if alarm == domain.AlarmStatusAlarm {
		logger.Debug(ctx, "Sensor change ignored while alarm is sounding")
		return nil
	}

	if sensor.Active == active {
		if active && alarm == domain.AlarmStatusPending {
			return c.setAlarmStatusLocked(ctx, domain.AlarmStatusAlarm)
		}

		return nil
	}

	sensor.Active = active
	if err = c.repo.UpdateSensor(ctx, sensor); err != nil {
		sensor.Active = !active

		return fmt.Errorf("store sensor: %w", err)
	}

	logger.Info(ctx, "Sensor activation changed")

	if active {
		arming, err := c.repo.ArmingStatus(ctx)
		if err != nil {
			return fmt.Errorf("load arming status: %w", err)
		}

		if !arming.IsArmed() {
			return nil
		}

		return c.setAlarmStatusLocked(ctx, alarm.Escalate())
	}

	if alarm != domain.AlarmStatusPending {
		return nil
	}

	anyActive, err := c.anySensorActiveLocked(ctx)
	if err != nil || anyActive {
		return err
	}

	return c.setAlarmStatusLocked(ctx, domain.AlarmStatusNoAlarm)
}

func (c *Controller) setAlarmStatusLocked(ctx context.Context, status domain.AlarmStatus) error {
	if err := c.repo.SetAlarmStatus(ctx, status); err != nil {
		return fmt.Errorf("store alarm status: %w", err)
	}

	logger.InfoKV(ctx, "Alarm status set", "alarm_status", status.String())

	ctx = context.WithValue(ctx, notifyingKey{}, c)
	for _, l := range c.snapshotListeners() {
		l.OnAlarmStatusChanged(ctx, status)
	}

	return nil
}

func (c *Controller) notifyDetection(ctx context.Context, detected bool) {
	ctx = context.WithValue(ctx, notifyingKey{}, c)
	for _, l := range c.snapshotListeners() {
		l.OnDetectionResult(ctx, detected)
	}
}

// deactivateSensorsLocked clears and stores the active flag of every sensor and
// returns the sensors it cleared. If one write fails, the sensors already cleared
// are switched back and stored again.
func (c *Controller) deactivateSensorsLocked(ctx context.Context) ([]*domain.Sensor, error) {
	sensors, err := c.repo.Sensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sensors: %w", err)
	}

	var cleared []*domain.Sensor

	for _, sensor := range sensors {
		if !sensor.Active {
			continue
		}

		sensor.Active = false

		if err = c.repo.UpdateSensor(ctx, sensor); err != nil {
			sensor.Active = true
			c.reactivateSensorsLocked(ctx, cleared)

			return nil, fmt.Errorf("store sensor %q: %w", sensor.Name, err)
		}

		cleared = append(cleared, sensor)
	}

	return cleared, nil
}

// reactivateSensorsLocked undoes a deactivation that could not be completed.
func (c *Controller) reactivateSensorsLocked(ctx context.Context, sensors []*domain.Sensor) {
	for _, sensor := range sensors {
		sensor.Active = true

		if err := c.repo.UpdateSensor(ctx, sensor); err != nil {
			logger.ErrorKV(ctx, "Failed to restore sensor after aborted arming", "sensor", sensor.Name, "error", err)
		}
	}
}

// storedSensorLocked returns the stored sensor that sensor refers to: the same
// pointer, or failing that the stored sensor with the same non-empty ID.
func (c *Controller) storedSensorLocked(ctx context.Context, sensor *domain.Sensor) (*domain.Sensor, error) {
	sensors, err := c.repo.Sensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sensors: %w", err)
	}

	if slices.Contains(sensors, sensor) {
		return sensor, nil
	}

	if sensor.ID != "" {
		idx := slices.IndexFunc(sensors, func(stored *domain.Sensor) bool { return stored.ID == sensor.ID })
		if idx >= 0 {
			return sensors[idx], nil
		}
	}

	return nil, fmt.Errorf("%w: %q", repo.ErrSensorNotFound, sensor.Name)
}

func (c *Controller) anySensorActiveLocked(ctx context.Context) (bool, error) {
	sensors, err := c.repo.Sensors(ctx)
	if err != nil {
		return false, fmt.Errorf("load sensors: %w", err)
	}

	return slices.ContainsFunc(sensors, func(s *domain.Sensor) bool { return s.Active }), nil
}

// classifyResult carries the outcome of a classifier call.
type classifyResult struct {
	detected bool
	err      error
}

// classify runs the classifier with a timeout and maps every failure to false.
func (c *Controller) classify(ctx context.Context, image []byte) bool {
	classifyCtx, cancel := context.WithTimeout(ctx, c.classifyTimeout)
	defer cancel()

	result := make(chan classifyResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- classifyResult{err: fmt.Errorf("%w: %v", errClassifierPanic, r)}
			}
		}()

		detected, err := c.classifier.Classify(classifyCtx, image)
		result <- classifyResult{detected: detected, err: err}
	}()

	select {
	case <-classifyCtx.Done():
		logger.WarnKV(ctx, "Classification abandoned, assuming subject absent", "error", classifyCtx.Err())

		return false
	case r := <-result:
		if r.err != nil {
			logger.WarnKV(ctx, "Classification failed, assuming subject absent", "error", r.err)

			return false
		}

		return r.detected
	}
}

func (c *Controller) snapshotListeners() []Listener {
	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()

	return slices.Clone(c.listeners)
}

// lock acquires exclusive access unless ctx belongs to one of our own notifications.
func (c *Controller) lock(ctx context.Context) (func(), error) {
	if c.isNotifying(ctx) {
		return nil, ErrReentrantCall
	}

	c.mu.Lock()

	return c.mu.Unlock, nil
}

// rlock is used by read accessors. Inside a notification the lock is already held
// by the notifying operation, so it is not taken again.
func (c *Controller) rlock(ctx context.Context) func() {
	if c.isNotifying(ctx) {
		return func() {}
	}

	c.mu.Lock()

	return c.mu.Unlock
}

func (c *Controller) isNotifying(ctx context.Context) bool {
	owner, ok := ctx.Value(notifyingKey{}).(*Controller)

	return ok && owner == c
}
