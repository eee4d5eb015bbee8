package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moabualruz/ricecoder-sub010/internal/agent/builtin"
	"github.com/moabualruz/ricecoder-sub010/internal/errors"
	"github.com/moabualruz/ricecoder-sub010/internal/plan"
)

func newValidateCmd() *cobra.Command {
	var planPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a plan and print its phases without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := plan.Load(planPath)
			if err != nil {
				return err
			}
			g, err := f.Graph()
			if err != nil {
				return errors.Wrapf(err, "plan %s", planPath)
			}
			phases, err := g.ComputePhases()
			if err != nil {
				return errors.Wrapf(err, "plan %s", planPath)
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderPhases(phases))

			reg := builtin.NewRegistry()
			unknown := 0
			for _, t := range f.Tasks {
				if _, err := reg.Resolve(t.Kind); err != nil {
					fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("warning: task %q: no worker for kind %q", t.ID, t.Kind)))
					unknown++
				}
			}
			fmt.Fprintf(out, "%s: %d task(s) in %d phase(s)", okStyle.Render("plan is valid"), len(f.Tasks), len(phases))
			if unknown > 0 {
				fmt.Fprintf(out, ", %d with unknown kinds", unknown)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "plan file (YAML)")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}
