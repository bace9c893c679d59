package commands

import (
	"github.com/spf13/cobra"

	"github.com/openfroyo/nifictl/pkg/config"
)

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the version of the NiFi instance",
		Example: `  nifictl info --nifi-url http://localhost:8080/nifi-api --root-group root
  nifictl info -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(outputTable, outputJSON)
			if err != nil {
				return err
			}

			e, err := setup(scopeNiFi, config.Overrides{})
			if err != nil {
				return err
			}
			defer e.close()

			client, err := e.client()
			if err != nil {
				return err
			}
			about, err := client.About(cmd.Context())
			if err != nil {
				return err
			}

			if format == outputJSON {
				return printJSON(cmd.OutOrStdout(), about)
			}

			tw := newTable(cmd.OutOrStdout())
			row(tw, "URL", client.URL())
			row(tw, "Title", about.Title)
			row(tw, "Version", about.Version)
			row(tw, "URI", about.URI)
			if about.Timezone != "" {
				row(tw, "Timezone", about.Timezone)
			}
			if about.BuildTag != "" {
				row(tw, "Build", about.BuildTag+" "+about.BuildRevision)
			}
			return tw.Flush()
		},
	}
}
