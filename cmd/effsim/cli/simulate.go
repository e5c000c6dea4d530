package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aponysus/effex/policy"
)

func newSimulateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate NAME",
		Short: "Replay a named policy without waiting",
		Long: `Replay the policy NAME from the spec file and print every retry status
it continues to, starting from the initial one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.OutOrStdout(), v, args[0])
		},
	}

	cmd.Flags().IntP("steps", "n", 20, "maximum number of statuses to print")
	cmd.Flags().String("format", "table", "output format: table | json")
	bindFlag(v, "simulate.steps", cmd.Flags(), "steps")
	bindFlag(v, "simulate.format", cmd.Flags(), "format")
	return cmd
}

type statusRow struct {
	Iteration       int           `json:"iteration"`
	PreviousDelay   time.Duration `json:"previous_delay_ns"`
	CumulativeDelay time.Duration `json:"cumulative_delay_ns"`
}

func runSimulate(w io.Writer, v *viper.Viper, name string) error {
	p, err := loadPolicy(v.GetString("policies"), name)
	if err != nil {
		return err
	}

	statuses := p.Simulate(v.GetInt("simulate.steps"))
	rows := make([]statusRow, len(statuses))
	for i, s := range statuses {
		rows[i] = statusRow{Iteration: s.Iteration, PreviousDelay: s.PreviousDelay, CumulativeDelay: s.CumulativeDelay}
	}

	switch format := v.GetString("simulate.format"); format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ITERATION\tPREVIOUS DELAY\tCUMULATIVE DELAY")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Iteration, r.PreviousDelay, r.CumulativeDelay)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (want table or json)", format)
	}
}

func loadPolicy(path, name string) (policy.Policy, error) {
	specs, err := policy.LoadSpecFile(path)
	if err != nil {
		return nil, err
	}
	spec, ok := specs[name]
	if !ok {
		names := make([]string, 0, len(specs))
		for n := range specs {
			names = append(names, n)
		}
		slices.Sort(names)
		return nil, fmt.Errorf("policy %q not found in %s (have: %s)", name, path, strings.Join(names, ", "))
	}
	return spec.Build()
}
