package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tturner/ab-eip-client/pkg/plctag"
)

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions the process-wide registry currently holds open",
		Long: `Opens no new session by itself; plctagctl is one-shot per invocation,
so this normally prints nothing unless a prior read/write in the same
process left a connection open (e.g. via a long-lived --keep-alive use,
not yet implemented) or this runs against a daemonized holder of the
same registry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runSessions()
			return nil
		},
	}
}

func runSessions() {
	sessions := plctag.Sessions()
	if len(sessions) == 0 {
		fmt.Println("no open sessions")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROTOCOL\tGATEWAY\tSTATE\tCONNECTED\tREFS")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.Protocol,
			fmt.Sprintf("%s:%d", s.Host, s.Port),
			s.State,
			yesNo(s.Connected),
			humanize.Comma(int64(s.RefCount)),
		)
	}
	w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
