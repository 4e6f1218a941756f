// Command plctagctl is a command-line client for reading and writing
// PLC tags through pkg/plctag, and for inspecting the sessions that
// back them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "plctagctl",
		Short: "EtherNet/IP and PCCC tag client",
		Long: `plctagctl reads and writes individual PLC tags over EtherNet/IP (Logix,
Micro800, Omron) or tunnelled PCCC (PLC-5, SLC, MicroLogix), addressed with
the same attribute-string syntax original_source's libplctag uses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newReadCmd())
	rootCmd.AddCommand(newWriteCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newInteractiveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
