package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfroyo/nifictl/pkg/rdf"
)

// Planner derives a provisioning plan from the graph.
type Planner struct {
	graph  Graph
	logger zerolog.Logger
}

// NewPlanner creates a planner reading from graph.
func NewPlanner(graph Graph, logger zerolog.Logger) *Planner {
	return &Planner{
		graph:  graph,
		logger: logger.With().Str("component", "planner").Logger(),
	}
}

// Plan runs every query shape once, in a fixed order, and assembles the
// result. Rows that fail mapping are logged and listed in Plan.Rejected. A
// query that cannot be executed is fatal.
func (p *Planner) Plan(ctx context.Context) (*Plan, error) {
	plan := &Plan{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}

	services, err := mapAll(ctx, p, serviceShape, plan)
	if err != nil {
		return nil, err
	}
	processors, err := mapAll(ctx, p, processShape, plan)
	if err != nil {
		return nil, err
	}
	writers, err := mapAll(ctx, p, writerChannelShape, plan)
	if err != nil {
		return nil, err
	}
	readers, err := mapAll(ctx, p, readerChannelShape, plan)
	if err != nil {
		return nil, err
	}
	if plan.DirectLinks, err = mapAll(ctx, p, directLinkShape, plan); err != nil {
		return nil, err
	}
	if plan.WriterLinks, err = mapAll(ctx, p, writerLinkShape, plan); err != nil {
		return nil, err
	}
	if plan.ReaderLinks, err = mapAll(ctx, p, readerLinkShape, plan); err != nil {
		return nil, err
	}

	var rejectedServices, rejectedProcessors []RejectedRow
	plan.Services, rejectedServices = aggregateEntities(services, KindControllerService, serviceShape.Name())
	plan.Processors, rejectedProcessors = aggregateEntities(processors, KindProcessor, processShape.Name())
	plan.WriterChannels = aggregateChannels(writers, RoleWriter)
	plan.ReaderChannels = aggregateChannels(readers, RoleReader)

	rejected := append(rejectedServices, rejectedProcessors...)
	rejected = append(rejected, plan.rejectAmbiguous()...)
	for _, r := range rejected {
		p.logger.Warn().Str("subject", r.Subject).Str("shape", r.Shape).Msg(r.Error)
		plan.Rejected = append(plan.Rejected, r)
	}

	plan.summarize()

	p.logger.Debug().
		Str("plan_id", plan.ID).
		Int("services", plan.Summary.Services).
		Int("processors", plan.Summary.Processors).
		Int("writer_channels", plan.Summary.WriterChannels).
		Int("reader_channels", plan.Summary.ReaderChannels).
		Int("links", plan.Summary.Links).
		Int("rejected", plan.Summary.Rejected).
		Msg("Plan derived")

	return plan, nil
}

// mapAll executes the shape's pattern and maps every row. Rows that fail
// mapping are recorded on the plan and skipped.
func mapAll[R any](ctx context.Context, p *Planner, shape *Shape[R], plan *Plan) ([]R, error) {
	sols, err := p.graph.Query(ctx, shape.Pattern())
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", shape.Name(), err)
	}

	out := make([]R, 0, len(sols))
	for _, sol := range sols {
		rec, err := shape.Map(sol)
		if err != nil {
			_, code := ClassOf(err)
			row := RejectedRow{
				Shape:   shape.Name(),
				Subject: subjectOf(sol),
				Code:    code,
				Error:   err.Error(),
			}
			plan.Rejected = append(plan.Rejected, row)
			p.logger.Warn().
				Err(err).
				Str("shape", row.Shape).
				Str("subject", row.Subject).
				Msg("Rejected query row")
			continue
		}
		out = append(out, rec)
	}

	return out, nil
}

// Describe renders a subject for logs and reports.
func Describe(t rdf.Term) string {
	if t.IsBlank() {
		return t.String()
	}
	return t.Short()
}
