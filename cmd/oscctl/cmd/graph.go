package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amp-labs/osc/osc"
	"github.com/amp-labs/osc/statemachine/visualizer"
)

func newGraphCmd(a *app) *cobra.Command {
	var (
		format    string
		highlight []string
		actions   bool
		noLoops   bool
	)

	c := &cobra.Command{
		Use:   "graph",
		Short: "Print the migration state machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}

			registry := svc.Machine.Registry()

			switch format {
			case "mermaid":
				opts := visualizer.DefaultOptions()
				opts.Initial = osc.StateYieldContext.String()
				opts.Terminal = osc.StateComplete.String()
				opts.Highlight = highlight
				opts.ShowActions = actions
				opts.HideSelfLoops = noLoops

				fmt.Fprint(cmd.OutOrStdout(), visualizer.Mermaid(registry, opts))

				return nil
			case "yaml":
				out, err := visualizer.YAML(registry)
				if err != nil {
					return err
				}

				_, err = cmd.OutOrStdout().Write(out)

				return err
			default:
				return fmt.Errorf("unknown format %q: use mermaid or yaml", format)
			}
		},
	}

	c.Flags().StringVar(&format, "format", "mermaid", "output format (mermaid, yaml)")
	c.Flags().StringSliceVar(&highlight, "highlight", nil, "states to highlight")
	c.Flags().BoolVar(&actions, "actions", false, "label states with their action")
	c.Flags().BoolVar(&noLoops, "hide-self-loops", false, "omit X --> X edges")

	return c
}
