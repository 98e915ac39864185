package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oshokin/catpoint/internal/classifier"
	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/notify"
	repo "github.com/oshokin/catpoint/internal/repository/security"
	"github.com/oshokin/catpoint/internal/service/camera"
	"github.com/oshokin/catpoint/internal/service/security"
)

// components holds everything the server process runs besides the gRPC listener.
type components struct {
	// controller owns the security state machine.
	controller *security.Controller
	// metrics is the Prometheus listener, nil when metrics are disabled.
	metrics *notify.Metrics
	// mqttClient is the broker connection, nil when MQTT is disabled.
	mqttClient *notify.MQTTClient
	// mqttListener publishes notifications through mqttClient.
	mqttListener *notify.MQTTListener
	// camera feeds snapshots to the controller, nil when no snapshot path is set.
	camera *camera.Loop
}

// newComponents builds the controller and its optional listeners from settings.
func newComponents(ctx context.Context, settings *config.Config, stateFile string) (*components, error) {
	repository, err := loadRepository(ctx, stateFile)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: settings.Classifier.Timeout}

	imageClassifier, err := classifier.New(&settings.Classifier, httpClient)
	if err != nil {
		return nil, fmt.Errorf("create classifier: %w", err)
	}

	c := new(components)
	listeners := []security.Listener{notify.NewLogListener()}

	if settings.MetricsAddress != "" {
		c.metrics, err = notify.NewMetrics(prometheus.NewRegistry())
		if err != nil {
			return nil, err
		}

		listeners = append(listeners, c.metrics)
	}

	if settings.MQTT.Broker != "" {
		c.mqttClient, err = notify.DialMQTT(ctx, &settings.MQTT)
		if err != nil {
			return nil, fmt.Errorf("connect mqtt: %w", err)
		}

		c.mqttListener = notify.NewMQTTListener(c.mqttClient, settings.MQTT.TopicPrefix)
		listeners = append(listeners, c.mqttListener)
	}

	c.controller = security.NewController(
		repository,
		imageClassifier,
		security.WithClassifyTimeout(settings.Classifier.Timeout),
		security.WithListeners(listeners...),
	)

	if settings.Camera.SnapshotPath != "" {
		source := &camera.FileSource{Path: settings.Camera.SnapshotPath}
		c.camera = camera.NewLoop(source, c.controller, settings.Camera.Interval)
	}

	logger.InfoKV(ctx, "Controller initialised",
		"classifier", settings.Classifier.Kind,
		"metrics", c.metrics != nil,
		"mqtt", c.mqttClient != nil,
		"camera", c.camera != nil,
	)

	return c, nil
}

// loadRepository opens the state file, starting from defaults when it does not exist yet.
func loadRepository(ctx context.Context, stateFile string) (*repo.FileRepository, error) {
	repository := repo.NewFileRepository(stateFile)

	err := repository.Load(ctx)
	switch {
	case err == nil:
		logger.InfoKV(ctx, "State restored", "state_file", stateFile)
	case errors.Is(err, repo.ErrNotFound):
		logger.InfoKV(ctx, "No saved state, starting with defaults", "state_file", stateFile)
	default:
		return nil, fmt.Errorf("load state: %w", err)
	}

	return repository, nil
}

// close releases the broker connection.
func (c *components) close() {
	if c.mqttClient != nil {
		c.mqttClient.Close()
	}
}
