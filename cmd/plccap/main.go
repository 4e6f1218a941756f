// Command plccap is a diagnostic pcap reader: it walks a capture file,
// reassembles each TCP stream carrying EtherNet/IP traffic, and prints
// one decoded line per encapsulation frame it can parse. It is not a
// discovery or replay tool — only an offline aid for debugging a
// session capture taken elsewhere.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var eipPort uint16

	cmd := &cobra.Command{
		Use:   "plccap <pcap-file>",
		Short: "Decode EtherNet/IP frames from a capture file",
		Args:  cobra.ExactArgs(1),
		Example: `  plccap capture.pcap
  plccap --port 2222 capture.pcap`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := decodeFile(args[0], eipPort); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(2)
			}
			return nil
		},
	}
	cmd.Flags().Uint16Var(&eipPort, "port", 44818, "TCP port carrying EtherNet/IP traffic")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
