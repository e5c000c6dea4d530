package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultPoliciesYAML = `# effsim policy specs. Durations use Go syntax: 10ms, 1s, 1m30s.
# kind: constant | incremental | exponential | full_jitter | equal_jitter | decorrelated_jitter

incremental:
  kind: incremental
  base: 10ms
  max_cumulative_delay: 120ms

capped:
  kind: incremental
  base: 10ms
  cap_delay: 100ms

backoff:
  kind: full_jitter
  base: 50ms
  cap: 2s
  max_retries: 5

two_phase:
  kind: constant
  base: 5ms
  max_retries: 3
  followed_by:
    kind: exponential
    base: 100ms
    max_retries: 4
`

func newInitCmd(v *viper.Viper) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample policy spec file",
		Long: `Write a sample policy spec file to the path given by --policies.

Fails if the file already exists unless --force is passed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dest := v.GetString("policies")
			if dest == "" {
				return errors.New("no destination: --policies is empty")
			}

			if dir := filepath.Dir(dest); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("mkdir: %w", err)
				}
			}

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("stat %s: %w", dest, err)
				}
			}

			if err := os.WriteFile(dest, []byte(defaultPoliciesYAML), 0o644); err != nil {
				return fmt.Errorf("write policies: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "policies written to %s\n", dest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing file")
	return cmd
}
