package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// LinkPolicy decides the relationship set of links without a key.
type LinkPolicy struct {
	MissingKey          MissingKeyPolicy
	DefaultRelationship string
}

// Validate checks the policy is complete.
func (p LinkPolicy) Validate() error {
	if err := p.MissingKey.Validate(); err != nil {
		return err
	}
	if p.MissingKey == MissingKeyDefault && p.DefaultRelationship == "" {
		return fmt.Errorf("default relationship is required when missing key policy is %q", MissingKeyDefault)
	}
	return nil
}

// LinkResolver turns link descriptors into connections between correlated
// objects.
type LinkResolver struct {
	plane        ControlPlane
	correlations CorrelationLookup
	policy       LinkPolicy
	rootGroup    string
	logger       zerolog.Logger
}

// NewLinkResolver creates a resolver that creates connections in rootGroup.
func NewLinkResolver(plane ControlPlane, correlations CorrelationLookup, policy LinkPolicy, rootGroup string, logger zerolog.Logger) *LinkResolver {
	return &LinkResolver{
		plane:        plane,
		correlations: correlations,
		policy:       policy,
		rootGroup:    rootGroup,
		logger:       logger.With().Str("component", "link_resolver").Logger(),
	}
}

// Resolve creates the connection of one link. A link with an uncorrelated
// endpoint is dropped with ErrCorrelationMiss and never reaches the remote
// engine.
func (r *LinkResolver) Resolve(ctx context.Context, link LinkDescriptor) (*RemoteObject, error) {
	log := r.logger.With().
		Str("source", Describe(link.Source)).
		Str("target", Describe(link.Target)).
		Str("origin", string(link.Origin)).
		Logger()

	src, ok := r.correlations.Lookup(link.Source)
	if !ok {
		log.Warn().Msg("Dropping link: source has no correlation")
		return nil, missError(link, "source")
	}
	dst, ok := r.correlations.Lookup(link.Target)
	if !ok {
		log.Warn().Msg("Dropping link: target has no correlation")
		return nil, missError(link, "target")
	}

	rels, err := r.relationships(link, src)
	if err != nil {
		log.Warn().Err(err).Msg("Dropping link")
		return nil, err
	}

	conn, err := r.plane.CreateConnection(ctx, ConnectionRequest{
		GroupID:       r.rootGroup,
		Source:        Endpoint{ID: src.RemoteID, GroupID: src.GroupID, Kind: src.Kind},
		Destination:   Endpoint{ID: dst.RemoteID, GroupID: dst.GroupID, Kind: dst.Kind},
		Relationships: rels,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create connection")
		return nil, withResource(err, link.Source)
	}

	log.Debug().Str("connection_id", conn.ID).Strs("relationships", rels).Msg("Created connection")
	return conn, nil
}

// relationships returns the selected relationship set. Ports have no
// relationships, so port-sourced links are always unrestricted.
func (r *LinkResolver) relationships(link LinkDescriptor, src CorrelationEntry) ([]string, error) {
	if src.Kind.IsPort() {
		return nil, nil
	}
	if link.Key != nil {
		return []string{*link.Key}, nil
	}

	switch r.policy.MissingKey {
	case MissingKeyDefault:
		return []string{r.policy.DefaultRelationship}, nil
	case MissingKeyUnrestricted:
		return nil, nil
	default:
		return nil, NewPermanentError("link has no relationship key", nil).
			WithCode(ErrCodeMissingRelationship).
			WithResource(link.Source.String()).
			WithDetail("target", link.Target.String())
	}
}

func missError(link LinkDescriptor, end string) *EngineError {
	subject := link.Source
	if end == "target" {
		subject = link.Target
	}
	return NewPermanentError(fmt.Sprintf("link %s has no correlation", end), nil).
		WithCode(ErrCodeCorrelationMiss).
		WithResource(subject.String()).
		WithDetail("origin", string(link.Origin))
}
