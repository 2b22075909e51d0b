package model

import (
	"sync"

	cyerrors "github.com/YuminosukeSato/cropyield/pkg/errors"
)

// StateManager tracks whether an estimator is fitted. The transition
// NotFitted -> Fitted happens at most once; there is no way back.
type StateManager struct {
	Fitted bool // exported for gob
	mu     sync.RWMutex

	NFeatures int
	NSamples  int
}

// NewStateManager returns a manager in the NotFitted state.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted reports whether the estimator has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// MarkFitted records the fitted dimensions and moves to Fitted. It fails with a
// ValueError wrapping ErrAlreadyFitted if the state was already Fitted.
func (s *StateManager) MarkFitted(op string, nFeatures, nSamples int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fitted {
		return cyerrors.NewValueErrorWrap(op, "estimator is already fitted; construct a new instance to refit", cyerrors.ErrAlreadyFitted)
	}
	s.Fitted = true
	s.NFeatures = nFeatures
	s.NSamples = nSamples
	return nil
}

// RequireUnfitted returns the same error as MarkFitted without changing state.
func (s *StateManager) RequireUnfitted(op string) error {
	if s.IsFitted() {
		return cyerrors.NewValueErrorWrap(op, "estimator is already fitted; construct a new instance to refit", cyerrors.ErrAlreadyFitted)
	}
	return nil
}

// RequireFitted returns a NotFittedError naming modelName and method when the
// estimator is not fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return cyerrors.NewNotFittedError(modelName, method)
	}
	return nil
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}
