package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ReadinessConfig bounds service enablement polling.
type ReadinessConfig struct {
	// Interval is the fixed delay between two status checks.
	Interval time.Duration

	// Retries is the number of checks after the first one.
	Retries int
}

// ReadinessPoller moves provisioned objects into their active state.
type ReadinessPoller struct {
	plane  ControlPlane
	cfg    ReadinessConfig
	logger zerolog.Logger
}

// NewReadinessPoller creates a poller.
func NewReadinessPoller(plane ControlPlane, cfg ReadinessConfig, logger zerolog.Logger) *ReadinessPoller {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &ReadinessPoller{
		plane:  plane,
		cfg:    cfg,
		logger: logger.With().Str("component", "readiness").Logger(),
	}
}

// EnableService requests enablement and checks the service state at most
// Retries+1 times, stopping at ENABLED. A service that is not enabled after
// the last check is logged as a warning and its last state returned without
// error. Only the enable request, a failed status read and cancellation are
// errors.
func (p *ReadinessPoller) EnableService(ctx context.Context, obj *RemoteObject) (ServiceState, int, error) {
	log := p.logger.With().Str("service_id", obj.ID).Logger()

	if err := p.plane.EnableService(ctx, obj); err != nil {
		log.Error().Err(err).Msg("Failed to request enablement")
		return "", 0, err
	}

	var state ServiceState
	checks := 0
	for attempt := 0; attempt <= p.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := p.wait(ctx); err != nil {
				return state, checks, err
			}
		}

		var err error
		state, err = p.plane.ServiceState(ctx, obj.ID)
		checks++
		if err != nil {
			log.Error().Err(err).Int("checks", checks).Msg("Failed to read service state")
			return state, checks, err
		}
		if state == ServiceEnabled {
			log.Debug().Int("checks", checks).Msg("Service enabled")
			return state, checks, nil
		}
	}

	log.Warn().
		Str("state", string(state)).
		Int("checks", checks).
		Msg("Service did not reach ENABLED, continuing")
	return state, checks, nil
}

// StartProcessor issues one start request without waiting for the result.
func (p *ReadinessPoller) StartProcessor(ctx context.Context, obj *RemoteObject) error {
	if err := p.plane.StartProcessor(ctx, obj); err != nil {
		p.logger.Error().Err(err).Str("processor_id", obj.ID).Msg("Failed to start processor")
		return err
	}
	return nil
}

// ActivateGroup enables every controller service of a group, polling each
// to its terminal outcome, and then starts the group. Services that fail to
// enable are returned as warnings; the group is started regardless.
func (p *ReadinessPoller) ActivateGroup(ctx context.Context, groupID string) (warnings []error, err error) {
	log := p.logger.With().Str("group_id", groupID).Logger()

	services, err := p.plane.ListServices(ctx, groupID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list group services")
		return nil, err
	}

	for i := range services {
		svc := &services[i]
		if ServiceState(svc.State) == ServiceEnabled {
			continue
		}
		state, _, err := p.EnableService(ctx, svc)
		if err != nil {
			if ctx.Err() != nil {
				return warnings, err
			}
			warnings = append(warnings, fmt.Errorf("service %s: %w", svc.ID, err))
			continue
		}
		if state != ServiceEnabled {
			warnings = append(warnings, NotEnabledError(svc.ID, state))
		}
	}

	if err := p.plane.StartGroup(ctx, groupID); err != nil {
		log.Error().Err(err).Msg("Failed to start group")
		return warnings, err
	}
	log.Debug().Int("services", len(services)).Msg("Group started")
	return warnings, nil
}

// wait sleeps for the configured interval unless ctx is done first.
func (p *ReadinessPoller) wait(ctx context.Context) error {
	select {
	case <-time.After(p.cfg.Interval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotEnabledError describes a service that did not reach ENABLED in time.
func NotEnabledError(id string, state ServiceState) *EngineError {
	return NewTransientError(fmt.Sprintf("service ended polling in state %q", state), nil).
		WithCode(ErrCodeReadinessTimeout).
		WithResource(id)
}
