package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/ftlgc/internal/telemetry"
	"github.com/marmos91/ftlgc/pkg/gc/policy"
	"github.com/marmos91/ftlgc/pkg/workload"
)

// validate is shared; validator caches struct metadata per instance.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for invalid or inconsistent values.
//
// Struct tags cover ranges and enumerations. Cross-field rules that tags
// cannot express (telemetry endpoint, geometry address space, policy and
// workload names) are checked afterwards. Validate never modifies cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return fmt.Errorf("telemetry.profiling.endpoint is required when profiling is enabled")
	}
	known := telemetry.ProfileTypeNames()
	for _, pt := range cfg.Telemetry.Profiling.ProfileTypes {
		if !slices.Contains(known, pt) {
			return fmt.Errorf("telemetry.profiling.profile_types: unknown type %q (valid: %s)", pt, strings.Join(known, ", "))
		}
	}

	if !cfg.Snapshots.InMemory && cfg.Snapshots.Path == "" {
		return fmt.Errorf("snapshots.path is required unless snapshots.in_memory is set")
	}

	sim := cfg.Simulation
	if err := sim.Geometry.Validate(); err != nil {
		return fmt.Errorf("simulation.geometry: %w", err)
	}
	if _, err := policy.Lookup(sim.Policy); err != nil {
		return fmt.Errorf("simulation.policy: %w", err)
	}
	if _, err := workload.New(sim.Workload, 2); err != nil {
		return fmt.Errorf("simulation.workload: %w", err)
	}

	return nil
}

// formatValidationError turns validator field errors into one readable line
// per field, naming the failed tag.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// Drop the leading "Config." from the namespace.
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s=%s' validation (value: %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s' validation", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
