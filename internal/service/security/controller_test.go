package security

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	repo "github.com/oshokin/catpoint/internal/repository/security"
)

var (
	errTestClassifier = errors.New("labeling backend unavailable")
	errTestStore      = errors.New("store unavailable")
)

// TestMain verifies that classifier goroutines never outlive the tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubClassifier returns a canned answer, or blocks until ctx ends when block is set.
type stubClassifier struct {
	detected bool
	err      error
	block    bool
	panics   bool
}

// Classify implements classifier.Classifier.
func (s *stubClassifier) Classify(ctx context.Context, _ []byte) (bool, error) {
	if s.panics {
		panic("decoder exploded")
	}

	if s.block {
		<-ctx.Done()

		return true, ctx.Err()
	}

	return s.detected, s.err
}

// recordingListener stores every notification in arrival order.
type recordingListener struct {
	mu         sync.Mutex
	statuses   []domain.AlarmStatus
	detections []bool
	onAlarm    func(ctx context.Context, status domain.AlarmStatus)
}

// OnAlarmStatusChanged records the status and runs the optional hook.
func (r *recordingListener) OnAlarmStatusChanged(ctx context.Context, status domain.AlarmStatus) {
	r.mu.Lock()
	r.statuses = append(r.statuses, status)
	r.mu.Unlock()

	if r.onAlarm != nil {
		r.onAlarm(ctx, status)
	}
}

// OnDetectionResult records the detection flag.
func (r *recordingListener) OnDetectionResult(_ context.Context, detected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.detections = append(r.detections, detected)
}

// Statuses returns a copy of the recorded alarm statuses.
func (r *recordingListener) Statuses() []domain.AlarmStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]domain.AlarmStatus(nil), r.statuses...)
}

// Detections returns a copy of the recorded detection results.
func (r *recordingListener) Detections() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]bool(nil), r.detections...)
}

// failingRepository fails UpdateSensor or SetAlarmStatus on demand.
type failingRepository struct {
	*repo.MemoryRepository

	failUpdate bool
	// failSensor, when set, fails UpdateSensor for the sensor with this name only.
	failSensor string
	failAlarm  bool
}

// UpdateSensor fails when failUpdate is set or the sensor is named failSensor.
func (f *failingRepository) UpdateSensor(ctx context.Context, sensor *domain.Sensor) error {
	if f.failUpdate || (f.failSensor != "" && sensor.Name == f.failSensor) {
		return errTestStore
	}

	return f.MemoryRepository.UpdateSensor(ctx, sensor)
}

// SetAlarmStatus fails when failAlarm is set.
func (f *failingRepository) SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error {
	if f.failAlarm {
		return errTestStore
	}

	return f.MemoryRepository.SetAlarmStatus(ctx, status)
}

// fixture bundles a controller with its collaborators.
type fixture struct {
	ctx        context.Context
	repo       *repo.MemoryRepository
	classifier *stubClassifier
	listener   *recordingListener
	controller *Controller
}

// newFixture creates a disarmed controller over an in-memory repository.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:        context.Background(),
		repo:       repo.NewMemoryRepository(),
		classifier: new(stubClassifier),
		listener:   new(recordingListener),
	}

	f.controller = NewController(f.repo, f.classifier,
		WithClassifyTimeout(50*time.Millisecond),
		WithListeners(f.listener))

	return f
}

// addSensor stores a new sensor with the given activation.
func (f *fixture) addSensor(t *testing.T, name string, active bool) *domain.Sensor {
	t.Helper()

	sensor := domain.NewSensor(name, domain.SensorTypeDoor)
	sensor.Active = active
	require.NoError(t, f.controller.AddSensor(f.ctx, sensor))

	return sensor
}

// seed stores the statuses directly, bypassing the controller.
func (f *fixture) seed(t *testing.T, arming domain.ArmingStatus, alarm domain.AlarmStatus) {
	t.Helper()

	require.NoError(t, f.repo.SetArmingStatus(f.ctx, arming))
	require.NoError(t, f.repo.SetAlarmStatus(f.ctx, alarm))
}

// alarm returns the stored alarm status.
func (f *fixture) alarm(t *testing.T) domain.AlarmStatus {
	t.Helper()

	status, err := f.controller.AlarmStatus(f.ctx)
	require.NoError(t, err)

	return status
}

// TestSetArmingStatus_DisarmAlwaysClearsAlarm verifies disarming forces NO_ALARM from any status.
func TestSetArmingStatus_DisarmAlwaysClearsAlarm(t *testing.T) {
	t.Parallel()

	for _, prior := range []domain.AlarmStatus{
		domain.AlarmStatusNoAlarm,
		domain.AlarmStatusPending,
		domain.AlarmStatusAlarm,
	} {
		f := newFixture(t)
		f.seed(t, domain.ArmingStatusArmedAway, prior)

		require.NoError(t, f.controller.SetArmingStatus(f.ctx, domain.ArmingStatusDisarmed))
		require.Equal(t, domain.AlarmStatusNoAlarm, f.alarm(t))
		require.Equal(t, []domain.AlarmStatus{domain.AlarmStatusNoAlarm}, f.listener.Statuses())

		arming, err := f.controller.ArmingStatus(f.ctx)
		require.NoError(t, err)
		require.Equal(t, domain.ArmingStatusDisarmed, arming)
	}
}

// TestSetArmingStatus_ArmingDeactivatesSensors verifies every sensor is inactive after arming.
func TestSetArmingStatus_ArmingDeactivatesSensors(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.ArmingStatus{domain.ArmingStatusArmedHome, domain.ArmingStatusArmedAway} {
		f := newFixture(t)
		door := f.addSensor(t, "Door", true)
		window := f.addSensor(t, "Window", true)
		f.addSensor(t, "Hall", false)

		require.NoError(t, f.controller.SetArmingStatus(f.ctx, status))

		require.False(t, door.Active)
		require.False(t, window.Active)

		for _, sensor := range f.repo.Snapshot().Sensors {
			require.False(t, sensor.Active, sensor.Name)
		}

		arming, err := f.controller.ArmingStatus(f.ctx)
		require.NoError(t, err)
		require.Equal(t, status, arming)
		require.Empty(t, f.listener.Statuses())
	}
}

// TestSetArmingStatus_ArmedHomeWithPreviousDetection raises ALARM when the subject is already in view.
func TestSetArmingStatus_ArmedHomeWithPreviousDetection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.classifier.detected = true

	// Disarmed: detection is recorded but does not raise the alarm.
	require.NoError(t, f.controller.ProcessImage(f.ctx, []byte("frame")))
	require.Equal(t, domain.AlarmStatusNoAlarm, f.alarm(t))
	require.True(t, f.controller.Detected(f.ctx))

	require.NoError(t, f.controller.SetArmingStatus(f.ctx, domain.ArmingStatusArmedHome))
	require.Equal(t, domain.AlarmStatusAlarm, f.alarm(t))

	arming, err := f.controller.ArmingStatus(f.ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ArmingStatusArmedHome, arming)
}

// TestSetArmingStatus_ArmedAwayIgnoresPreviousDetection keeps ARMED_AWAY decoupled from the camera.
func TestSetArmingStatus_ArmedAwayIgnoresPreviousDetection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.classifier.detected = true

	require.NoError(t, f.controller.ProcessImage(f.ctx, []byte("frame")))
	require.NoError(t, f.controller.SetArmingStatus(f.ctx, domain.ArmingStatusArmedAway))
	require.Equal(t, domain.AlarmStatusNoAlarm, f.alarm(t))
}

// TestSetArmingStatus_DisarmClearsDetection verifies re-arming home after a disarm does not alarm.
func TestSetArmingStatus_DisarmClearsDetection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.classifier.detected = true

	require.NoError(t, f.controller.ProcessImage(f.ctx, []byte("frame")))
	require.NoError(t, f.controller.SetArmingStatus(f.ctx, domain.ArmingStatusDisarmed))
	require.False(t, f.controller.Detected(f.ctx))

	require.NoError(t, f.controller.SetArmingStatus(f.ctx, domain.ArmingStatusArmedHome))
	require.Equal(t, domain.AlarmStatusNoAlarm, f.alarm(t))
}

// TestChangeSensorActivation_EscalationSequence walks NO_ALARM -> PENDING -> ALARM and checks ALARM is terminal.
func TestChangeSensorActivation_EscalationSequence(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	first := f.addSensor(t, "Door", false)
	second := f.addSensor(t, "Window", false)
	f.seed(t, domain.ArmingStatusArmedAway, domain.AlarmStatusNoAlarm)

	require.NoError(t, f.controller.ChangeSensorActivation(f.ctx, first, true))
	require.Equal(t, domain.AlarmStatusPending, f.alarm(t))

	require.NoError(t, f.controller.ChangeSensorActivation(f.ctx, second, true))
	require.Equal(t, domain.AlarmStatusAlarm, f.alarm(t))

	require.NoError(t, f.controller.ChangeSensorActivation(f.ctx, first, false))
	require.Equal(t, domain.AlarmStatusAlarm, f.alarm(t))
	// The ignored event does not touch the sensor either.
	require.True(t, first.Active)

	require.Equal(t,
		[]domain.AlarmStatus{domain.AlarmStatusPending, domain.AlarmStatusAlarm},
		f.listener.Statuses())
}

// TestChangeSensorActivation_PendingDeactivation returns to NO_ALARM only when no sensor remains active.
func TestChangeSensorActivation_PendingDeactivation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	first := f.addSensor(t, "Door", true)
	second := f.addSensor(t, "Window", true)
	f.seed(t, domain.ArmingStatusArmedAway, domain.AlarmStatusPending)

	require.NoError(t, f.controller.ChangeSensorActivation(f.ctx, first, false))
	require.Equal(t, domain.AlarmStatusPending, f.alarm(t))

	require.NoError(t, f.controller.ChangeSensorActivation(f.ctx, second, false))
	require.Equal(t, domain.AlarmStatusNoAlarm, f.alarm(t))
}

// TestChangeSensorActivation_ReactivationDuringPending escalates to ALARM.
func TestChangeSensorActivation_ReactivationDuringPending(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sensor := f.addSensor(t, "Door", true)
	f.seed(t, domain.ArmingStatusArmedAway, domain.AlarmStatusPending)

	require.NoError(t, f.controller.ChangeSensorActivation(f.ctx, sensor, true))
	require.Equal(t, domain.AlarmStatusAlarm, f.alarm(t))
}

// TestChangeSensorActivation_AlarmIsSticky verifies no sensor event changes ALARM.
func TestChangeSensorActivation_AlarmIsSticky(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	active := f.addSensor(t, "Door", true)
	inactive := f.addSensor(t, "Window", false)
	f.seed(t, domain.ArmingStatusArmedAway, domain.AlarmStatusAlarm)

	for _, event := range []struct {
		sensor *domain.Sensor
		active bool
	}{
		{active, true},
		{active, false},
		{inactive, true},
		{inactive, false},
	} {
		require.NoError(t, f.controller.ChangeSensorActivation(f.ctx, event.sensor, event.active))
		require.Equal(t, domain.AlarmStatusAlarm, f.alarm(t))
	}

	require.Empty(t, f.listener.Statuses())
}

// TestChangeSensorActivation_Idempotent verifies a repeated event yields a single transition.
func TestChangeSensorActivation_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sensor := f.addSensor(t, "Door", false)
	f.seed(t, domain.ArmingStatusArmedAway, domain.AlarmStatusNoAlarm)

	require.NoError(t, f.controller.ChangeSensorActivation(f.ctx, sensor, true))
	require.Equal(t, []domain.AlarmStatus{domain.AlarmStatusPending}, f.listener.Statuses())

	// The repeat counts as re-triggering while pending.
	require.NoError(t, f.controller.ChangeSensorActivation(f.ctx, sensor, true))
	require.Equal(t, domain.AlarmStatusAlarm, f.alarm(t))

	g := newFixture(t)
	other := g.addSensor(t, "Window", false)
	g.seed(t, domain.ArmingStatusArmedAway, domain.AlarmStatusNoAlarm)

	require.NoError(t, g.controller.ChangeSensorActivation(g.ctx, other, false))
	require.NoError(t, g.controller.ChangeSensorActivation(g.ctx, other, false))
	require.Empty(t, g.listener.Statuses())
}

// TestChangeSensorActivation_Disarmed records the activation without raising an alarm.
func TestChangeSensorActivation_Disarmed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sensor := f.addSensor(t, "Door", false)

	require.NoError(t, f.controller.ChangeSensorActivation(f.ctx, sensor, true))
	require.True(t, sensor.Active)
	require.Equal(t, domain.AlarmStatusNoAlarm, f.alarm(t))
	require.Empty(t, f.listener.Statuses())
}

// TestChangeSensorActivationByID returns a detached copy reflecting the change.
func TestChangeSensorActivationByID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sensor := f.addSensor(t, "Door", false)
	f.seed(t, domain.ArmingStatusArmedHome, domain.AlarmStatusNoAlarm)

	got, err := f.controller.ChangeSensorActivationByID(f.ctx, sensor.ID, true)
	require.NoError(t, err)
	require.True(t, got.Active)
	require.NotSame(t, sensor, got)
	require.Equal(t, domain.AlarmStatusPending, f.alarm(t))

	_, err = f.controller.ChangeSensorActivationByID(f.ctx, "missing", true)
	require.ErrorIs(t, err, repo.ErrSensorNotFound)
}

// TestChangeSensorActivation_StoreFailureRollsBack keeps the sensor unchanged when the write fails.
func TestChangeSensorActivation_StoreFailureRollsBack(t *testing.T) {
	t.Parallel()

	store := &failingRepository{MemoryRepository: repo.NewMemoryRepository()}
	controller := NewController(store, new(stubClassifier))
	ctx := context.Background()

	sensor := domain.NewSensor("Door", domain.SensorTypeDoor)
	require.NoError(t, controller.AddSensor(ctx, sensor))
	require.NoError(t, store.SetArmingStatus(ctx, domain.ArmingStatusArmedAway))

	store.failUpdate = true

	err := controller.ChangeSensorActivation(ctx, sensor, true)
	require.ErrorIs(t, err, errTestStore)
	require.False(t, sensor.Active)

	status, err := controller.AlarmStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.AlarmStatusNoAlarm, status)
}

// TestSetArmingStatus_SensorStoreFailureRestoresSensors re-activates sensors cleared before a failed write.
func TestSetArmingStatus_SensorStoreFailureRestoresSensors(t *testing.T) {
	t.Parallel()

	store := &failingRepository{MemoryRepository: repo.NewMemoryRepository(), failSensor: "Window"}
	controller := NewController(store, new(stubClassifier))
	ctx := context.Background()

	door := domain.NewSensor("Door", domain.SensorTypeDoor)
	door.Active = true
	window := domain.NewSensor("Window", domain.SensorTypeWindow)
	window.Active = true

	require.NoError(t, controller.AddSensor(ctx, door))
	require.NoError(t, controller.AddSensor(ctx, window))

	require.ErrorIs(t, controller.SetArmingStatus(ctx, domain.ArmingStatusArmedAway), errTestStore)

	for _, sensor := range store.Snapshot().Sensors {
		require.True(t, sensor.Active, sensor.Name)
	}

	arming, err := controller.ArmingStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ArmingStatusDisarmed, arming)
}

// TestSetArmingStatus_AlarmFailureRestoresSensors re-activates sensors when raising ALARM on arming fails.
func TestSetArmingStatus_AlarmFailureRestoresSensors(t *testing.T) {
	t.Parallel()

	store := &failingRepository{MemoryRepository: repo.NewMemoryRepository()}
	controller := NewController(store, &stubClassifier{detected: true})
	ctx := context.Background()

	door := domain.NewSensor("Door", domain.SensorTypeDoor)
	door.Active = true
	require.NoError(t, controller.AddSensor(ctx, door))

	// The subject is seen while disarmed, so arming at home must raise ALARM.
	require.NoError(t, controller.ProcessImage(ctx, []byte("frame")))

	store.failAlarm = true

	require.ErrorIs(t, controller.SetArmingStatus(ctx, domain.ArmingStatusArmedHome), errTestStore)
	require.True(t, door.Active)
	require.True(t, store.Snapshot().Sensors[0].Active)

	arming, err := controller.ArmingStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ArmingStatusDisarmed, arming)
}

// TestChangeSensorActivation_CopyFromSensors drives a sensor obtained from Sensors rather than the stored pointer.
func TestChangeSensorActivation_CopyFromSensors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addSensor(t, "Door", false)
	f.seed(t, domain.ArmingStatusArmedAway, domain.AlarmStatusNoAlarm)

	sensors, err := f.controller.Sensors(f.ctx)
	require.NoError(t, err)
	require.Len(t, sensors, 1)

	copied := sensors[0]
	require.NoError(t, f.controller.ChangeSensorActivation(f.ctx, copied, true))
	require.True(t, copied.Active)
	require.True(t, f.repo.Snapshot().Sensors[0].Active)
	require.Equal(t, domain.AlarmStatusPending, f.alarm(t))

	// A frame without the subject must not clear an alarm caused by an active sensor.
	require.NoError(t, f.controller.ProcessImage(f.ctx, []byte("frame")))
	require.Equal(t, domain.AlarmStatusPending, f.alarm(t))

	require.NoError(t, f.controller.ChangeSensorActivation(f.ctx, copied, false))
	require.False(t, f.repo.Snapshot().Sensors[0].Active)
	require.Equal(t, domain.AlarmStatusNoAlarm, f.alarm(t))
}

// TestChangeSensorActivation_UnknownSensor rejects a sensor that was never added and leaves the alarm alone.
func TestChangeSensorActivation_UnknownSensor(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, domain.ArmingStatusArmedAway, domain.AlarmStatusNoAlarm)

	stranger := domain.NewSensor("Garage", domain.SensorTypeDoor)

	err := f.controller.ChangeSensorActivation(f.ctx, stranger, true)
	require.ErrorIs(t, err, repo.ErrSensorNotFound)
	require.False(t, stranger.Active)
	require.Equal(t, domain.AlarmStatusNoAlarm, f.alarm(t))
	require.Empty(t, f.listener.Statuses())
}

// TestSensorCopies_AddAndRemove treats copies from Sensors as the stored sensors.
func TestSensorCopies_AddAndRemove(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addSensor(t, "Door", false)

	sensors, err := f.controller.Sensors(f.ctx)
	require.NoError(t, err)

	// Re-adding a copy is a no-op.
	require.NoError(t, f.controller.AddSensor(f.ctx, sensors[0]))
	require.Len(t, f.repo.Snapshot().Sensors, 1)

	require.NoError(t, f.controller.RemoveSensor(f.ctx, sensors[0]))
	require.Empty(t, f.repo.Snapshot().Sensors)

	require.NoError(t, f.controller.RemoveSensor(f.ctx, sensors[0]))
}

// TestSetArmingStatus_AlarmStoreFailureAborts leaves the arming status untouched.
func TestSetArmingStatus_AlarmStoreFailureAborts(t *testing.T) {
	t.Parallel()

	store := &failingRepository{MemoryRepository: repo.NewMemoryRepository(), failAlarm: true}
	controller := NewController(store, new(stubClassifier))
	ctx := context.Background()

	require.NoError(t, store.SetArmingStatus(ctx, domain.ArmingStatusArmedAway))
	require.ErrorIs(t, controller.SetArmingStatus(ctx, domain.ArmingStatusDisarmed), errTestStore)

	arming, err := controller.ArmingStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ArmingStatusArmedAway, arming)
}

// TestProcessImage_ArmedHomeDetection raises ALARM.
func TestProcessImage_ArmedHomeDetection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, domain.ArmingStatusArmedHome, domain.AlarmStatusNoAlarm)
	f.classifier.detected = true

	require.NoError(t, f.controller.ProcessImage(f.ctx, []byte("frame")))
	require.Equal(t, domain.AlarmStatusAlarm, f.alarm(t))
	require.Equal(t, []bool{true}, f.listener.Detections())
}

// TestProcessImage_ArmedAwayDetection does not raise an alarm by itself.
func TestProcessImage_ArmedAwayDetection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, domain.ArmingStatusArmedAway, domain.AlarmStatusNoAlarm)
	f.classifier.detected = true

	require.NoError(t, f.controller.ProcessImage(f.ctx, []byte("frame")))
	require.Equal(t, domain.AlarmStatusNoAlarm, f.alarm(t))
	require.Empty(t, f.listener.Statuses())
	require.Equal(t, []bool{true}, f.listener.Detections())
}

// TestProcessImage_NoDetectionNoActiveSensors clears the alarm.
func TestProcessImage_NoDetectionNoActiveSensors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addSensor(t, "Door", false)
	f.seed(t, domain.ArmingStatusArmedHome, domain.AlarmStatusAlarm)

	require.NoError(t, f.controller.ProcessImage(f.ctx, []byte("frame")))
	require.Equal(t, domain.AlarmStatusNoAlarm, f.alarm(t))
	require.Equal(t, []bool{false}, f.listener.Detections())
}

// TestProcessImage_NoDetectionWithActiveSensor keeps the sensor-driven status.
func TestProcessImage_NoDetectionWithActiveSensor(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addSensor(t, "Door", true)
	f.seed(t, domain.ArmingStatusArmedAway, domain.AlarmStatusPending)

	require.NoError(t, f.controller.ProcessImage(f.ctx, []byte("frame")))
	require.Equal(t, domain.AlarmStatusPending, f.alarm(t))
	require.Empty(t, f.listener.Statuses())
}

// TestProcessImage_DisarmedDetection forces NO_ALARM despite a positive detection.
func TestProcessImage_DisarmedDetection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, domain.ArmingStatusDisarmed, domain.AlarmStatusPending)
	f.classifier.detected = true

	require.NoError(t, f.controller.ProcessImage(f.ctx, []byte("frame")))
	require.Equal(t, domain.AlarmStatusNoAlarm, f.alarm(t))
	require.Equal(t, []domain.AlarmStatus{domain.AlarmStatusNoAlarm}, f.listener.Statuses())
	require.Equal(t, []bool{true}, f.listener.Detections())
}

// TestProcessImage_ClassifierFailuresMeanAbsent covers errors, timeouts and panics.
func TestProcessImage_ClassifierFailuresMeanAbsent(t *testing.T) {
	t.Parallel()

	cases := map[string]*stubClassifier{
		"error":   {detected: true, err: errTestClassifier},
		"timeout": {block: true},
		"panic":   {panics: true},
	}

	for name, stub := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.classifier = stub
			f.controller = NewController(f.repo, stub,
				WithClassifyTimeout(20*time.Millisecond),
				WithListeners(f.listener))

			f.seed(t, domain.ArmingStatusArmedHome, domain.AlarmStatusAlarm)

			require.NoError(t, f.controller.ProcessImage(f.ctx, []byte("frame")))
			require.Equal(t, domain.AlarmStatusNoAlarm, f.alarm(t))
			require.Equal(t, []bool{false}, f.listener.Detections())
			require.False(t, f.controller.Detected(f.ctx))
		})
	}
}

// TestProcessImage_CallerCanceled applies nothing when the caller gives up.
func TestProcessImage_CallerCanceled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, domain.ArmingStatusArmedHome, domain.AlarmStatusAlarm)

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	err := f.controller.ProcessImage(ctx, []byte("frame"))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, domain.AlarmStatusAlarm, f.alarm(t))
	require.Empty(t, f.listener.Detections())
}

// TestListeners_OrderAndIdempotence verifies registration order, duplicate adds and removals.
func TestListeners_OrderAndIdempotence(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		order []string
	)

	record := func(name string) *recordingListener {
		return &recordingListener{onAlarm: func(context.Context, domain.AlarmStatus) {
			mu.Lock()
			defer mu.Unlock()

			order = append(order, name)
		}}
	}

	first, second, third := record("first"), record("second"), record("third")

	c := NewController(repo.NewMemoryRepository(), new(stubClassifier))
	c.AddListener(first)
	c.AddListener(second)
	c.AddListener(first)
	c.AddListener(third)
	c.RemoveListener(second)
	c.RemoveListener(second)

	require.NoError(t, c.SetAlarmStatus(context.Background(), domain.AlarmStatusPending))
	require.Equal(t, []string{"first", "third"}, order)
	require.Len(t, first.Statuses(), 1)
	require.Empty(t, second.Statuses())
}

// TestListeners_ReentrantCallRejected verifies listeners cannot mutate but may read.
func TestListeners_ReentrantCallRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	var (
		reentrantErr error
		observed     domain.AlarmStatus
	)

	f.listener.onAlarm = func(ctx context.Context, _ domain.AlarmStatus) {
		reentrantErr = f.controller.SetArmingStatus(ctx, domain.ArmingStatusArmedAway)

		var err error

		observed, err = f.controller.AlarmStatus(ctx)
		require.NoError(t, err)
	}

	require.NoError(t, f.controller.SetAlarmStatus(f.ctx, domain.AlarmStatusPending))
	require.ErrorIs(t, reentrantErr, ErrReentrantCall)
	require.Equal(t, domain.AlarmStatusPending, observed)

	arming, err := f.controller.ArmingStatus(f.ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ArmingStatusDisarmed, arming)
}

// TestController_ConcurrentEvents hammers the controller from several producers.
func TestController_ConcurrentEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sensors := []*domain.Sensor{
		f.addSensor(t, "Door", false),
		f.addSensor(t, "Window", false),
		f.addSensor(t, "Hall", false),
	}

	var wg sync.WaitGroup

	for i := range 3 {
		wg.Go(func() {
			for j := range 50 {
				_ = f.controller.ChangeSensorActivation(f.ctx, sensors[i], j%2 == 0)
			}
		})
	}

	wg.Go(func() {
		for range 20 {
			_ = f.controller.ProcessImage(f.ctx, []byte("frame"))
		}
	})

	wg.Go(func() {
		for j := range 20 {
			status := domain.ArmingStatusArmedAway
			if j%2 == 0 {
				status = domain.ArmingStatusDisarmed
			}

			_ = f.controller.SetArmingStatus(f.ctx, status)
		}
	})

	wg.Wait()

	// Finish in a known state: disarmed means NO_ALARM.
	require.NoError(t, f.controller.SetArmingStatus(f.ctx, domain.ArmingStatusDisarmed))
	require.Equal(t, domain.AlarmStatusNoAlarm, f.alarm(t))

	got, err := f.controller.Sensors(f.ctx)
	require.NoError(t, err)
	require.Len(t, got, len(sensors))
}

// TestPassthroughs covers sensor add/remove and lookups.
func TestPassthroughs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sensor := f.addSensor(t, "Door", false)

	got, err := f.controller.SensorByID(f.ctx, sensor.ID)
	require.NoError(t, err)
	require.Equal(t, sensor, got)
	require.NotSame(t, sensor, got)

	require.NoError(t, f.controller.RemoveSensorByID(f.ctx, sensor.ID))
	require.ErrorIs(t, f.controller.RemoveSensorByID(f.ctx, sensor.ID), repo.ErrSensorNotFound)

	other := f.addSensor(t, "Window", false)
	require.NoError(t, f.controller.RemoveSensor(f.ctx, other))
	require.NoError(t, f.controller.RemoveSensor(f.ctx, other))

	sensors, err := f.controller.Sensors(f.ctx)
	require.NoError(t, err)
	require.Empty(t, sensors)

	require.Error(t, f.controller.ChangeSensorActivation(f.ctx, nil, true))
}
