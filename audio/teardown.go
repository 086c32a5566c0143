package audio

import (
	"errors"
	"fmt"
	"log/slog"
)

// Step is one named release action of a device teardown.
type Step struct {
	Name string
	Fn   func() error
}

// Teardown runs every step in order. A step that fails or panics is logged
// and skipped; it never prevents the steps after it. The joined failures are
// returned for callers that want to report them.
func Teardown(logger *slog.Logger, steps ...Step) error {
	if logger == nil {
		logger = slog.Default()
	}

	var errs []error
	for _, step := range steps {
		if err := runStep(step); err != nil {
			logger.Debug("teardown step failed", "step", step.Name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func runStep(step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", step.Name, r)
		}
	}()
	if step.Fn == nil {
		return nil
	}
	if err := step.Fn(); err != nil {
		return fmt.Errorf("%s: %w", step.Name, err)
	}
	return nil
}
