package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/openfroyo/nifictl/pkg/config"
	"github.com/openfroyo/nifictl/pkg/engine"
	"github.com/openfroyo/nifictl/pkg/policy"
)

// validation is the JSON form of a validate result.
type validation struct {
	Valid    bool                 `json:"valid"`
	Summary  engine.PlanSummary   `json:"summary"`
	Rejected []engine.RejectedRow `json:"rejected,omitempty"`
	Policy   *policy.Result       `json:"policy"`
}

func newValidateCommand() *cobra.Command {
	var (
		ontology []string
		watch    bool
	)

	cmd := &cobra.Command{
		Use:   "validate [instance.ttl]",
		Short: "Validate configuration, graph and policies",
		Long: `Validate everything a run depends on without calling NiFi.

Validation:
  - Checks the configuration against its schema
  - Parses the ontology files and the instance graph
  - Derives the plan and reports rejected rows
  - Evaluates the built-in and configured policies

The command fails when a row was rejected or a policy violation of severity
error was found, whether or not policies are enforced. With --watch it keeps
running and validates again whenever a loaded file or a policy file changes.`,
		Example: `  # Validate a flow
  nifictl validate --ontology ontology.ttl flow.ttl

  # Validate with a specific config file
  nifictl validate --config nifictl.cue flow.ttl

  # Validate again on every change to the flow or the policies
  nifictl validate --config nifictl.cue flow.ttl --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(outputTable, outputJSON)
			if err != nil {
				return err
			}

			instance := instanceArg(args)
			if watch && (instance == "" || instance == "-") {
				return errors.New("--watch needs an instance file")
			}

			e, err := setup(scopeAll, config.Overrides{Ontology: ontology})
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			policies, err := e.policies(ctx)
			if err != nil {
				return err
			}

			// Policy reloads and file changes fire from different goroutines.
			var mu sync.Mutex
			check := func(ctx context.Context) error {
				mu.Lock()
				defer mu.Unlock()
				return e.validate(ctx, cmd, policies, instance, format)
			}

			if !watch {
				return check(ctx)
			}

			if err := check(ctx); err != nil {
				e.logger.Warn().Err(err).Msg("Validation failed")
			}
			recheck := func(ctx context.Context) {
				fmt.Fprintln(cmd.OutOrStdout())
				if err := check(ctx); err != nil {
					e.logger.Warn().Err(err).Msg("Validation failed")
				}
			}
			if len(e.cfg.Policy.Paths) > 0 {
				if err := policies.WatchPolicies(ctx, e.cfg.Policy.Paths, func() { recheck(ctx) }); err != nil {
					return err
				}
			}
			files := append(append([]string{}, e.cfg.Ontology.Files...), instance)
			return watchFiles(ctx, files, recheck)
		},
	}

	cmd.Flags().StringArrayVar(&ontology, "ontology", nil, "ontology file to load before the instance (repeatable)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "validate again when a loaded file or a policy changes")

	return cmd
}

// validate derives the plan, evaluates the policies, prints the outcome and
// returns an error when the plan is not valid.
func (e *env) validate(ctx context.Context, cmd *cobra.Command, policies *policy.Engine, instance, format string) error {
	plan, err := e.derive(ctx, instance, cmd.InOrStdin())
	if err != nil {
		return err
	}

	result, err := policies.EvaluatePlan(ctx, plan)
	if err != nil {
		return err
	}

	v := validation{
		Valid:    len(plan.Rejected) == 0 && result.Allowed,
		Summary:  plan.Summary,
		Rejected: plan.Rejected,
		Policy:   result,
	}

	if format == outputJSON {
		if err := printJSON(cmd.OutOrStdout(), v); err != nil {
			return err
		}
	} else {
		printValidation(cmd.OutOrStdout(), v)
	}

	switch {
	case len(plan.Rejected) > 0:
		return fmt.Errorf("validation failed: %d rejected row(s)", len(plan.Rejected))
	case !result.Allowed:
		return fmt.Errorf("validation failed: %d blocking policy violation(s)", len(result.Blocking()))
	}
	return nil
}

func printValidation(w io.Writer, v validation) {
	s := v.Summary
	fmt.Fprintf(w, "Plan: %d services, %d processors, %d channels, %d links\n",
		s.Services, s.Processors, s.WriterChannels+s.ReaderChannels, s.Links)
	fmt.Fprintf(w, "Policies evaluated: %d\n", len(v.Policy.EvaluatedPolicies))

	printRejected(w, v.Rejected)

	if len(v.Policy.Violations) > 0 {
		fmt.Fprintln(w, "\nPolicy violations:")
		tw := newTable(w)
		row(tw, "POLICY", "SEVERITY", "SUBJECT", "MESSAGE")
		for _, viol := range v.Policy.Violations {
			row(tw, viol.Policy, viol.Severity, viol.Subject, viol.Message)
		}
		_ = tw.Flush()
	}
	for _, warning := range v.Policy.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}

	if v.Valid {
		fmt.Fprintln(w, "\n✓ Valid")
	}
}
