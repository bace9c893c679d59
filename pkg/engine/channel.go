package engine

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/openfroyo/nifictl/pkg/rdf"
)

// TemplateFile is one configured channel template.
type TemplateFile struct {
	// Path is the template XML file.
	Path string

	// Role restricts the template to writer or reader channels. Empty allows both.
	Role Role
}

// FileTemplates maps channel type IRIs to template files on disk.
type FileTemplates map[string]TemplateFile

// LoadTemplate implements TemplateLoader.
func (f FileTemplates) LoadTemplate(channelType string, role Role) (string, []byte, error) {
	tf, ok := f[channelType]
	if !ok {
		return "", nil, NewPermanentError("no template configured for channel type", nil).
			WithCode(ErrCodeTemplateNotConfigured).
			WithResource(channelType)
	}
	if tf.Role != "" && tf.Role != role {
		return "", nil, NewPermanentError(
			fmt.Sprintf("template is configured for %s channels, used as %s", tf.Role, role), nil).
			WithCode(ErrCodeValidation).
			WithResource(channelType)
	}

	content, err := os.ReadFile(tf.Path)
	if err != nil {
		return "", nil, NewPermanentError("failed to read template", err).
			WithCode(ErrCodeValidation).
			WithResource(channelType)
	}

	return rdf.IRI(channelType).Short(), content, nil
}

// ChannelProvisioner provisions channel entities by instantiating templates.
// It holds the per-run channel context: one uploaded template per channel
// type and the groups instantiated for correlated channels.
type ChannelProvisioner struct {
	plane        ControlPlane
	correlations *CorrelationStore
	templates    TemplateLoader
	rootGroup    string
	logger       zerolog.Logger

	uploaded    map[rdf.Term]string
	uploadErrs  map[rdf.Term]error
	uploadOrder []rdf.Term
	uploads     int
	groups      []string
}

// NewChannelProvisioner creates a provisioner instantiating templates into rootGroup.
func NewChannelProvisioner(plane ControlPlane, correlations *CorrelationStore, templates TemplateLoader, rootGroup string, logger zerolog.Logger) *ChannelProvisioner {
	return &ChannelProvisioner{
		plane:        plane,
		correlations: correlations,
		templates:    templates,
		rootGroup:    rootGroup,
		logger:       logger.With().Str("component", "channel_provisioner").Logger(),
		uploaded:     make(map[rdf.Term]string),
		uploadErrs:   make(map[rdf.Term]error),
	}
}

// Provision instantiates the template of the channel's type, correlates the
// channel with the generated port and binds its attributes as group
// variables. The port is returned; the group it lives in is remembered for
// activation once the channel is correlated.
func (p *ChannelProvisioner) Provision(ctx context.Context, ch ChannelEntity) (*RemoteObject, error) {
	log := p.logger.With().
		Str("subject", Describe(ch.Subject)).
		Str("channel_type", Describe(ch.ChannelType)).
		Str("role", string(ch.Role)).
		Logger()

	templateID, err := p.template(ctx, ch)
	if err != nil {
		log.Error().Err(err).Msg("Channel template unavailable")
		return nil, err
	}

	sub, err := p.plane.InstantiateTemplate(ctx, p.rootGroup, templateID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to instantiate template")
		return nil, withResource(err, ch.Subject)
	}
	if len(sub.Groups) == 0 {
		return nil, NewPermanentError("template instance contains no process group", nil).
			WithCode(ErrCodePortNotFound).
			WithResource(ch.Subject.String())
	}
	group := sub.Groups[0]

	dir := ch.Role.PortDirection()
	ports, err := p.plane.ListPorts(ctx, group.ID, dir)
	if err != nil {
		log.Error().Err(err).Str("group_id", group.ID).Msg("Failed to list ports")
		return nil, withResource(err, ch.Subject)
	}
	if len(ports) == 0 {
		return nil, NewPermanentError(fmt.Sprintf("instantiated group exposes no %s port", dir), nil).
			WithCode(ErrCodePortNotFound).
			WithResource(ch.Subject.String()).
			WithDetail("group_id", group.ID)
	}
	port := ports[0]
	port.GroupID = group.ID
	port.Kind = dir.Kind()

	log = log.With().Str("group_id", group.ID).Str("port_id", port.ID).Logger()

	var errs []error
	if err := p.correlations.Record(ctx, CorrelationEntry{
		Subject:  ch.Subject,
		RemoteID: port.ID,
		GroupID:  group.ID,
		Kind:     port.Kind,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to record correlation")
		if errors.Is(err, ErrDuplicateCorrelation) {
			return nil, err
		}
		// The in-memory entry is kept; only the graph write-back failed.
		errs = append(errs, err)
	}
	p.groups = append(p.groups, group.ID)

	if vars := ch.Variables(); len(vars) > 0 {
		if err := p.plane.SetVariables(ctx, group.ID, vars); err != nil {
			log.Error().Err(err).Msg("Failed to set group variables")
			errs = append(errs, withResource(err, ch.Subject))
		} else {
			log.Debug().Int("variables", len(vars)).Msg("Bound group variables")
		}
	}

	return &port, errors.Join(errs...)
}

// template returns the uploaded template of the channel's type, uploading
// it on first use. A failed upload is remembered so that later instances of
// the same type fail without another upload.
func (p *ChannelProvisioner) template(ctx context.Context, ch ChannelEntity) (string, error) {
	if id, ok := p.uploaded[ch.ChannelType]; ok {
		return id, nil
	}
	if err, ok := p.uploadErrs[ch.ChannelType]; ok {
		return "", err
	}

	id, err := p.upload(ctx, ch)
	if err != nil {
		p.uploadErrs[ch.ChannelType] = err
		return "", err
	}

	p.uploaded[ch.ChannelType] = id
	p.uploadOrder = append(p.uploadOrder, ch.ChannelType)
	p.uploads++
	p.logger.Info().
		Str("channel_type", Describe(ch.ChannelType)).
		Str("template_id", id).
		Msg("Uploaded channel template")
	return id, nil
}

func (p *ChannelProvisioner) upload(ctx context.Context, ch ChannelEntity) (string, error) {
	if p.templates == nil {
		return "", NewPermanentError("no channel templates configured", nil).
			WithCode(ErrCodeTemplateNotConfigured).
			WithResource(ch.ChannelType.Value)
	}

	name, content, err := p.templates.LoadTemplate(ch.ChannelType.Value, ch.Role)
	if err != nil {
		return "", err
	}

	id, err := p.plane.UploadTemplate(ctx, p.rootGroup, name, content)
	if err != nil {
		return "", fmt.Errorf("failed to upload template for %s: %w", Describe(ch.ChannelType), err)
	}
	return id, nil
}

// Cleanup deletes every uploaded template exactly once and returns the
// number deleted along with the deletion errors.
func (p *ChannelProvisioner) Cleanup(ctx context.Context) (int, []error) {
	var errs []error
	deleted := 0

	for _, ct := range p.uploadOrder {
		id := p.uploaded[ct]
		if err := p.plane.DeleteTemplate(ctx, id); err != nil {
			p.logger.Error().Err(err).Str("template_id", id).Msg("Failed to delete template")
			errs = append(errs, fmt.Errorf("failed to delete template of %s: %w", Describe(ct), err))
			continue
		}
		deleted++
	}

	p.uploadOrder = nil
	p.uploaded = make(map[rdf.Term]string)
	return deleted, errs
}

// Uploaded returns the number of templates uploaded during the run.
func (p *ChannelProvisioner) Uploaded() int {
	return p.uploads
}

// Groups returns the instantiated groups of correlated channels, in
// provisioning order.
func (p *ChannelProvisioner) Groups() []string {
	return p.groups
}
