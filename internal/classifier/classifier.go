package classifier

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"

	"github.com/oshokin/catpoint/internal/config"
)

// Classifier decides whether an image depicts the monitored subject.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (bool, error)
}

// Random answers arbitrarily. It never fails.
type Random struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandom creates a Random classifier seeded from the runtime source.
func NewRandom() *Random {
	return &Random{
		rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // Not security sensitive.
	}
}

// Classify returns a coin flip.
func (r *Random) Classify(context.Context, []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rnd.IntN(2) == 1, nil
}

// Fixed always returns the same answer.
type Fixed bool

// Classify returns the fixed answer.
func (f Fixed) Classify(context.Context, []byte) (bool, error) {
	return bool(f), nil
}

// New builds the classifier selected by cfg.
func New(cfg *config.ClassifierConfig, httpClient *http.Client) (Classifier, error) { //nolint:ireturn // Factory.
	switch cfg.Kind {
	case config.ClassifierRandom, "":
		return NewRandom(), nil
	case config.ClassifierFixed:
		return Fixed(cfg.FixedResult), nil
	case config.ClassifierLabels:
		detector := NewHTTPDetector(cfg.Endpoint, httpClient)

		return NewLabels(detector, cfg.Subject, cfg.MinConfidence), nil
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", cfg.Kind)
	}
}
