// Command plcmon is a read-only terminal dashboard: it opens one or
// more tags, polls them on an interval, and shows their live values
// alongside the process-wide session registry's state.
package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func main() {
	var tags []string
	var pollInterval time.Duration
	var readTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "plcmon",
		Short: "Live dashboard of polled PLC tags and their sessions",
		Long: `plcmon opens one or more tags addressed with libplctag-style attribute
strings, polls each on --poll-interval, and renders a live table of
values next to the process-wide registry's open sessions.`,
		Example: `  plcmon --tag "protocol=ab_eip&gateway=10.0.0.50&name=MyTag&data_type=DINT"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(tags) == 0 {
				return fmt.Errorf("at least one --tag is required")
			}
			m, err := newModel(tags, pollInterval, readTimeout)
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(m).Run()
			return err
		},
	}

	cmd.Flags().StringArrayVar(&tags, "tag", nil, "tag attribute string to watch (repeatable)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 500*time.Millisecond, "how often to re-read every watched tag")
	cmd.Flags().DurationVar(&readTimeout, "timeout", 3*time.Second, "per-read timeout")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
