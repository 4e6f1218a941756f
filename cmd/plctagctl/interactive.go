package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func newInteractiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Prompt for a tag's address and perform a read or write",
		Long: `interactive walks through the same fields read/write take as flags,
then either reads the tag and prints its value or writes a value you
provide, without needing every flag spelled out on the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runInteractive(); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(2)
			}
			return nil
		},
	}
}

func runInteractive() error {
	f := &tagFlags{}
	var op, portStr, countStr, value string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Operation").
				Options(
					huh.NewOption("Read", "read"),
					huh.NewOption("Write", "write"),
				).
				Value(&op),
			huh.NewSelect[string]().
				Title("Protocol").
				Options(
					huh.NewOption("Logix (ab_eip)", "ab_eip"),
					huh.NewOption("PLC-5", "plc5"),
					huh.NewOption("SLC", "slc"),
					huh.NewOption("MicroLogix", "micrologix"),
					huh.NewOption("Micro800", "micro800"),
					huh.NewOption("Omron", "omron"),
				).
				Value(&f.protocol),
			huh.NewInput().Title("Gateway host").Value(&f.gateway),
			huh.NewInput().Title("Port").Placeholder("44818").Value(&portStr),
			huh.NewInput().Title("Tag name / PCCC address").Value(&f.name),
			huh.NewInput().Title("Connection path (optional, e.g. 1,0)").Value(&f.path),
			huh.NewSelect[string]().
				Title("Data type").
				Options(
					huh.NewOption("BOOL", "BOOL"), huh.NewOption("SINT", "SINT"),
					huh.NewOption("INT", "INT"), huh.NewOption("DINT", "DINT"),
					huh.NewOption("LINT", "LINT"), huh.NewOption("USINT", "USINT"),
					huh.NewOption("UINT", "UINT"), huh.NewOption("UDINT", "UDINT"),
					huh.NewOption("ULINT", "ULINT"), huh.NewOption("REAL", "REAL"),
					huh.NewOption("LREAL", "LREAL"),
				).
				Value(&f.dataType),
			huh.NewInput().Title("Element count").Placeholder("1").Value(&countStr),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("prompt: %w", err)
	}

	f.port = 44818
	if strings.TrimSpace(portStr) != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		f.port = p
	}
	f.count = 1
	if strings.TrimSpace(countStr) != "" {
		c, err := strconv.Atoi(countStr)
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		f.count = c
	}
	f.timeout = 5 * time.Second

	if op == "write" {
		if err := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Value (comma-separated for count > 1)").Value(&value),
		)).Run(); err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
		return runWrite(f, value)
	}
	return runRead(f, false)
}
