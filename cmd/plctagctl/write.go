package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newWriteCmd() *cobra.Command {
	f := &tagFlags{}
	var value string

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write a value to a tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runWrite(f, value); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(2)
			}
			return nil
		},
	}
	addTagFlags(cmd, f)
	cmd.Flags().StringVar(&value, "value", "", "value to write; comma-separated for count > 1 (required)")
	cmd.MarkFlagRequired("value")
	return cmd
}

func runWrite(f *tagFlags, value string) error {
	if _, err := f.elemSize(); err != nil {
		return err
	}

	parts := strings.Split(value, ",")
	if len(parts) != f.count {
		return fmt.Errorf("--value has %d element(s), --count is %d", len(parts), f.count)
	}

	tg, err := f.openTag()
	if err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	defer tg.Destroy()

	for i, raw := range parts {
		if err := setElement(tg, f.dataType, i, strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("parse element %d (%q): %w", i, raw, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := tg.Write(ctx, tg.Bytes()); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
