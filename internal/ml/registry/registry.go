package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/domain"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
)

// Classifier is the capability every backend must provide.
type Classifier interface {
	Fit(x [][]float64, y []float64) error
	Predict(x [][]float64) []float64
}

// ProbabilityClassifier is implemented by backends that can report a
// positive-class probability.
type ProbabilityClassifier interface {
	Classifier
	PredictProba(x [][]float64) []float64
}

type Capability uint8

const (
	CapPredict Capability = 1 << iota
	CapProbability
)

func (c Capability) Has(o Capability) bool {
	return c&o == o
}

func (c Capability) String() string {
	var parts []string
	if c.Has(CapPredict) {
		parts = append(parts, "predict")
	}
	if c.Has(CapProbability) {
		parts = append(parts, "proba")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Entry binds a backend name to its family, declared capabilities and a
// factory producing a fresh unfitted instance.
type Entry struct {
	Name         string
	Family       domain.ModelFamily
	Capabilities Capability
	// Optional entries that fail to construct are recorded as unavailable
	// instead of aborting registration.
	Optional bool
	New      func() (Classifier, error)
}

// Registry keeps entries in registration order.
type Registry struct {
	entries []Entry
	byName  map[string]int
	notices []common.Notice
}

func New() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register builds one instance from the factory and checks the instance against the
// declared capabilities.
func (r *Registry) Register(e Entry) error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return errors.New("registry: entry name is required")
	}
	if _, dup := r.byName[e.Name]; dup {
		return fmt.Errorf("registry: %s already registered", e.Name)
	}
	if e.New == nil {
		return fmt.Errorf("registry: %s has no factory", e.Name)
	}
	e.Capabilities |= CapPredict

	if err := checkFactory(e); err != nil {
		unavailable := common.BackendUnavailable(e.Name, err)
		if !e.Optional {
			return unavailable
		}
		r.notices = append(r.notices, common.NoticeFromError(e.Name, unavailable))
		return nil
	}
	r.byName[e.Name] = len(r.entries)
	r.entries = append(r.entries, e)
	return nil
}

func checkFactory(e Entry) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("factory panicked: %v", rec)
		}
	}()
	inst, err := e.New()
	if err != nil {
		return err
	}
	if inst == nil {
		return errors.New("factory returned nil")
	}
	if e.Capabilities.Has(CapProbability) {
		if _, ok := inst.(ProbabilityClassifier); !ok {
			return fmt.Errorf("declares %s but does not implement PredictProba", e.Capabilities)
		}
	}
	return nil
}

// MarkUnavailable records a backend that was deliberately not registered.
func (r *Registry) MarkUnavailable(name, reason string) {
	r.notices = append(r.notices, common.NoticeFromError(name, common.BackendUnavailable(name, errors.New(reason))))
}

func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

func (r *Registry) Lookup(name string) (Entry, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Notices lists backends that were requested but are not usable.
func (r *Registry) Notices() []common.Notice {
	return append([]common.Notice(nil), r.notices...)
}
