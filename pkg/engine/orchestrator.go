package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfroyo/nifictl/pkg/rdf"
	"github.com/openfroyo/nifictl/pkg/telemetry"
)

// cleanupTimeout bounds template deletion, which outlives a cancelled run.
const cleanupTimeout = 30 * time.Second

// Options configures a provisioning run.
type Options struct {
	// RootGroup is the process group every object is created in.
	RootGroup string

	// Start activates services, processors and channel groups after wiring.
	Start bool

	// Links decides how links without a relationship key are wired.
	Links LinkPolicy

	// Readiness bounds service enablement polling.
	Readiness ReadinessConfig

	// Templates resolves channel templates. Nil fails every channel.
	Templates TemplateLoader

	// Gate, if set, must accept the plan before any remote call is made.
	Gate PlanGate

	// Instrumentation. All optional.
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
	Events  *telemetry.EventPublisher
}

// Orchestrator sequences one provisioning run: derive the plan, gate it,
// create services and processors, wire direct links, provision channels,
// wire channel links, delete templates, activate and report.
//
// All remote calls are issued one at a time from the calling goroutine.
type Orchestrator struct {
	graph  Graph
	plane  ControlPlane
	opts   Options
	logger zerolog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(graph Graph, plane ControlPlane, opts Options, logger zerolog.Logger) (*Orchestrator, error) {
	if graph == nil {
		return nil, NewPermanentError("graph is required", nil).WithCode(ErrCodeValidation)
	}
	if plane == nil {
		return nil, NewPermanentError("control plane is required", nil).WithCode(ErrCodeValidation)
	}
	if opts.RootGroup == "" {
		return nil, NewPermanentError("root group is required", nil).WithCode(ErrCodeValidation)
	}
	if err := opts.Links.Validate(); err != nil {
		return nil, NewPermanentError("invalid link policy", err).WithCode(ErrCodeValidation)
	}

	return &Orchestrator{
		graph:  graph,
		plane:  plane,
		opts:   opts,
		logger: logger.With().Str("component", "orchestrator").Logger(),
	}, nil
}

// run is the state of one Run call.
type run struct {
	*Orchestrator

	id           string
	report       *RunReport
	log          zerolog.Logger
	correlations *CorrelationStore
	entities     *EntityProvisioner
	channels     *ChannelProvisioner
	links        *LinkResolver
	readiness    *ReadinessPoller

	services   []*RemoteObject
	processors []*RemoteObject
}

// Run executes one provisioning run. The returned report is never nil. The
// error is non-nil only for fatal failures: the plan could not be derived
// or the plan gate denied it. Per-entity and per-link failures are listed
// in the report.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	id := uuid.New().String()
	r := &run{
		Orchestrator: o,
		id:           id,
		report: &RunReport{
			RunID:     id,
			StartedAt: time.Now(),
			Status:    RunStatusRunning,
		},
		log:          o.logger.With().Str("run_id", id).Logger(),
		correlations: NewCorrelationStore(o.graph),
	}
	r.entities = NewEntityProvisioner(o.plane, r.correlations, o.opts.RootGroup, r.log)
	r.channels = NewChannelProvisioner(o.plane, r.correlations, o.opts.Templates, o.opts.RootGroup, r.log)
	r.links = NewLinkResolver(o.plane, r.correlations, o.opts.Links, o.opts.RootGroup, r.log)
	r.readiness = NewReadinessPoller(o.plane, o.opts.Readiness, r.log)

	ctx, span := o.opts.Tracer.StartRunSpan(ctx, id)
	defer span.End()

	o.opts.Metrics.RecordRunStarted()
	_ = o.opts.Events.PublishRunStarted(id)
	r.log.Info().Str("root_group", o.opts.RootGroup).Bool("start", o.opts.Start).Msg("Run started")

	err := r.execute(ctx)
	r.finish(err)

	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.RecordSuccess(span)
	}
	return r.report, err
}

func (r *run) execute(ctx context.Context) error {
	var plan *Plan
	if err := r.phase(ctx, PhasePlan, func(ctx context.Context) error {
		var err error
		plan, err = NewPlanner(r.graph, r.log).Plan(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("failed to derive plan: %w", err)
	}

	for _, row := range plan.Rejected {
		r.report.Summary.RowsRejected++
		r.opts.Metrics.RecordRejectedRow(row.Shape)
		r.report.Failures = append(r.report.Failures, Failure{
			Phase:   PhasePlan,
			Subject: row.Subject,
			Class:   ErrorClassPermanent,
			Code:    row.Code,
			Message: row.Error,
		})
	}

	if r.opts.Gate != nil {
		if err := r.phase(ctx, PhasePolicy, func(ctx context.Context) error {
			return r.opts.Gate.CheckPlan(ctx, plan)
		}); err != nil {
			return err
		}
	}

	r.phase(ctx, PhaseServices, func(ctx context.Context) error {
		r.services = r.provisionEntities(ctx, PhaseServices, plan.Services)
		return nil
	})
	r.phase(ctx, PhaseProcessors, func(ctx context.Context) error {
		r.processors = r.provisionEntities(ctx, PhaseProcessors, plan.Processors)
		return nil
	})
	r.phase(ctx, PhaseDirectLinks, func(ctx context.Context) error {
		r.resolveLinks(ctx, PhaseDirectLinks, plan.DirectLinks)
		return nil
	})
	r.phase(ctx, PhaseWriterChannels, func(ctx context.Context) error {
		r.provisionChannels(ctx, PhaseWriterChannels, plan.WriterChannels)
		return nil
	})
	r.phase(ctx, PhaseReaderChannels, func(ctx context.Context) error {
		r.provisionChannels(ctx, PhaseReaderChannels, plan.ReaderChannels)
		return nil
	})
	r.phase(ctx, PhaseChannelLinks, func(ctx context.Context) error {
		r.resolveLinks(ctx, PhaseChannelLinks, plan.WriterLinks)
		r.resolveLinks(ctx, PhaseChannelLinks, plan.ReaderLinks)
		return nil
	})
	r.phase(ctx, PhaseCleanup, func(ctx context.Context) error {
		r.cleanup(ctx)
		return nil
	})

	if r.opts.Start {
		r.phase(ctx, PhaseActivation, func(ctx context.Context) error {
			r.activate(ctx)
			return nil
		})
	}

	return nil
}

// phase runs fn inside a span and brackets it with events.
func (r *run) phase(ctx context.Context, phase Phase, fn func(context.Context) error) error {
	ctx, span := r.opts.Tracer.StartPhaseSpan(ctx, string(phase))
	defer span.End()

	started := time.Now()
	_ = r.opts.Events.PublishPhaseStarted(r.id, string(phase))
	r.log.Debug().Str("phase", string(phase)).Msg("Phase started")

	err := fn(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		r.log.Error().Err(err).Str("phase", string(phase)).Msg("Phase failed")
		return err
	}

	telemetry.RecordSuccess(span)
	_ = r.opts.Events.PublishPhaseCompleted(r.id, string(phase), time.Since(started))
	return nil
}

func (r *run) provisionEntities(ctx context.Context, phase Phase, entities []Entity) []*RemoteObject {
	var created []*RemoteObject

	for _, e := range entities {
		kind := string(e.Kind)
		obj, err := r.entities.Provision(ctx, e)
		if obj == nil {
			r.report.Summary.EntitiesFailed++
			r.opts.Metrics.RecordEntity(kind, "failed")
			r.fail(phase, e.Subject, err)
			continue
		}

		created = append(created, obj)
		if e.Kind == KindControllerService {
			r.report.Summary.ServicesCreated++
		} else {
			r.report.Summary.ProcessorsCreated++
		}
		r.opts.Metrics.RecordEntity(kind, "created")
		_ = r.opts.Events.PublishEntityProvisioned(r.id, Describe(e.Subject), kind, obj.ID)

		if err != nil {
			r.opts.Metrics.RecordEntity(kind, "misconfigured")
			r.fail(phase, e.Subject, err)
		}
	}

	return created
}

func (r *run) provisionChannels(ctx context.Context, phase Phase, channels []ChannelEntity) {
	for _, ch := range channels {
		uploads := r.channels.Uploaded()
		port, err := r.channels.Provision(ctx, ch)
		if n := r.channels.Uploaded() - uploads; n > 0 {
			r.report.Summary.TemplatesUploaded += n
			r.opts.Metrics.RecordTemplate("upload")
		}

		if port == nil {
			r.report.Summary.EntitiesFailed++
			r.opts.Metrics.RecordChannel(string(ch.Role), "failed")
			r.fail(phase, ch.Subject, err)
			continue
		}

		r.report.Summary.ChannelsCreated++
		r.opts.Metrics.RecordChannel(string(ch.Role), "created")
		_ = r.opts.Events.PublishEntityProvisioned(r.id, Describe(ch.Subject), string(port.Kind), port.ID)
		if err != nil {
			r.fail(phase, ch.Subject, err)
		}
	}
}

func (r *run) resolveLinks(ctx context.Context, phase Phase, links []LinkDescriptor) {
	for _, link := range links {
		conn, err := r.links.Resolve(ctx, link)
		if err != nil {
			r.report.Summary.LinksDropped++
			r.opts.Metrics.RecordConnection(string(link.Origin), "dropped")
			_ = r.opts.Events.PublishLinkDropped(r.id, Describe(link.Source), Describe(link.Target), err.Error())
			r.fail(phase, link.Source, err)
			continue
		}

		r.report.Summary.ConnectionsCreated++
		r.opts.Metrics.RecordConnection(string(link.Origin), "created")
		_ = r.opts.Events.PublishLinkCreated(r.id, Describe(link.Source), Describe(link.Target), conn.ID)
	}
}

// cleanup deletes the uploaded templates even when the run was cancelled.
func (r *run) cleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	deleted, errs := r.channels.Cleanup(ctx)
	r.report.Summary.TemplatesDeleted += deleted
	for i := 0; i < deleted; i++ {
		r.opts.Metrics.RecordTemplate("delete")
	}
	for _, err := range errs {
		r.fail(PhaseCleanup, rdf.Term{}, err)
	}
}

// activate enables root services, starts processors and then enables and
// starts every channel group.
func (r *run) activate(ctx context.Context) {
	for _, svc := range r.services {
		state, checks, err := r.readiness.EnableService(ctx, svc)
		if err != nil {
			r.opts.Metrics.RecordReadiness("error", checks)
			r.failRemote(PhaseActivation, svc.ID, err)
			continue
		}
		if state != ServiceEnabled {
			r.opts.Metrics.RecordReadiness("timeout", checks)
			r.warn(svc.ID, NotEnabledError(svc.ID, state))
			continue
		}
		r.opts.Metrics.RecordReadiness("enabled", checks)
	}

	for _, proc := range r.processors {
		if err := r.readiness.StartProcessor(ctx, proc); err != nil {
			r.failRemote(PhaseActivation, proc.ID, err)
		}
	}

	for _, group := range r.channels.Groups() {
		warnings, err := r.readiness.ActivateGroup(ctx, group)
		for _, w := range warnings {
			r.warn(group, w)
		}
		if err != nil {
			r.failRemote(PhaseActivation, group, err)
		}
	}
}

// fail records a per-entity failure.
func (r *run) fail(phase Phase, subject rdf.Term, err error) {
	name := ""
	if !subject.IsZero() {
		name = subject.String()
	}
	r.failRemote(phase, name, err)
}

func (r *run) failRemote(phase Phase, subject string, err error) {
	if err == nil {
		return
	}
	class, code := ClassOf(err)
	r.opts.Metrics.RecordError(string(class), code)
	r.report.Failures = append(r.report.Failures, Failure{
		Phase:   phase,
		Subject: subject,
		Class:   class,
		Code:    code,
		Message: err.Error(),
	})
	_ = r.opts.Events.PublishEntityFailed(r.id, subject, string(phase), err.Error())
}

// warn records a condition that does not count as a failure.
func (r *run) warn(subject string, err error) {
	r.report.Summary.Warnings++
	r.log.Warn().Err(err).Str("subject", subject).Msg("Run warning")
	_ = r.opts.Events.PublishWarning(r.id, subject, err.Error())
}

func (r *run) finish(err error) {
	rep := r.report
	rep.CompletedAt = time.Now()
	rep.Correlations = r.correlations.Entries()

	switch {
	case err != nil:
		rep.Status = RunStatusFailed
		rep.Error = err.Error()
	case len(rep.Failures) > 0:
		rep.Status = RunStatusPartial
	default:
		rep.Status = RunStatusSucceeded
	}

	r.opts.Metrics.RecordRunCompleted(string(rep.Status), rep.Duration())
	if err != nil {
		_ = r.opts.Events.PublishRunFailed(r.id, err.Error())
	}
	_ = r.opts.Events.PublishRunCompleted(r.id, string(rep.Status), rep.Duration())

	evt := r.log.Info()
	if rep.Status != RunStatusSucceeded {
		evt = r.log.Warn()
	}
	evt.
		Str("status", string(rep.Status)).
		Dur("duration", rep.Duration()).
		Int("processors", rep.Summary.ProcessorsCreated).
		Int("services", rep.Summary.ServicesCreated).
		Int("channels", rep.Summary.ChannelsCreated).
		Int("connections", rep.Summary.ConnectionsCreated).
		Int("failures", len(rep.Failures)).
		Msg("Run finished")
}
