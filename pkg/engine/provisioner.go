package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfroyo/nifictl/pkg/rdf"
)

// EntityProvisioner creates processors and controller services.
type EntityProvisioner struct {
	plane        ControlPlane
	correlations *CorrelationStore
	rootGroup    string
	logger       zerolog.Logger
}

// NewEntityProvisioner creates a provisioner that creates objects in rootGroup.
func NewEntityProvisioner(plane ControlPlane, correlations *CorrelationStore, rootGroup string, logger zerolog.Logger) *EntityProvisioner {
	return &EntityProvisioner{
		plane:        plane,
		correlations: correlations,
		rootGroup:    rootGroup,
		logger:       logger.With().Str("component", "entity_provisioner").Logger(),
	}
}

// Provision creates the remote object of one entity, correlates it and
// pushes its configuration.
//
// A nil object means creation failed and the entity is abandoned. A non-nil
// object with a non-nil error means the object exists but correlation
// write-back or configuration failed; the object is kept.
func (p *EntityProvisioner) Provision(ctx context.Context, e Entity) (*RemoteObject, error) {
	log := p.logger.With().
		Str("subject", Describe(e.Subject)).
		Str("engine_type", e.EngineType).
		Logger()

	var obj *RemoteObject
	var err error
	switch e.Kind {
	case KindProcessor:
		obj, err = p.plane.CreateProcessor(ctx, p.rootGroup, e.EngineType)
	case KindControllerService:
		obj, err = p.plane.CreateService(ctx, p.rootGroup, e.EngineType)
	default:
		err = NewPermanentError(fmt.Sprintf("cannot create objects of kind %s", e.Kind), nil).
			WithCode(ErrCodeValidation)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to create remote object")
		return nil, withResource(err, e.Subject)
	}

	log = log.With().Str("remote_id", obj.ID).Logger()
	log.Debug().Msg("Created remote object")

	var errs []error
	if err := p.correlations.Record(ctx, CorrelationEntry{
		Subject:  e.Subject,
		RemoteID: obj.ID,
		GroupID:  obj.GroupID,
		Kind:     obj.Kind,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to record correlation")
		errs = append(errs, err)
	}

	props, unkeyed := e.Properties()
	for _, rec := range unkeyed {
		log.Warn().Str("path", rec.Path.String()).Msg("Skipping attribute without remote key")
	}

	updated, err := p.update(ctx, e.Kind, obj, props)
	if err != nil {
		log.Error().Err(err).Msg("Failed to configure remote object")
		errs = append(errs, withResource(err, e.Subject))
	} else {
		obj = updated
		log.Debug().Int("properties", len(props)).Msg("Configured remote object")
	}

	return obj, errors.Join(errs...)
}

func (p *EntityProvisioner) update(ctx context.Context, kind ComponentKind, obj *RemoteObject, props map[string]string) (*RemoteObject, error) {
	if kind == KindControllerService {
		return p.plane.UpdateService(ctx, obj, props)
	}
	return p.plane.UpdateProcessor(ctx, obj, props)
}

// withResource attaches a subject to an engine error that has no resource yet.
func withResource(err error, subject rdf.Term) error {
	var ee *EngineError
	if errors.As(err, &ee) && ee.Resource == "" {
		ee.Resource = subject.String()
	}
	return err
}
