package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

func newReadCmd() *cobra.Command {
	f := &tagFlags{}
	var clip bool

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read a tag's current value",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runRead(f, clip); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(2)
			}
			return nil
		},
	}
	addTagFlags(cmd, f)
	cmd.Flags().BoolVar(&clip, "clip", false, "copy the decoded value(s) to the system clipboard")
	return cmd
}

func runRead(f *tagFlags, clip bool) error {
	if _, err := f.elemSize(); err != nil {
		return err
	}

	tg, err := f.openTag()
	if err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	defer tg.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := tg.Read(ctx); err != nil {
		return fmt.Errorf("read: %w", err)
	}

	values := make([]string, f.count)
	for i := 0; i < f.count; i++ {
		v, err := formatElement(tg, f.dataType, i)
		if err != nil {
			return fmt.Errorf("decode element %d: %w", i, err)
		}
		values[i] = v
	}
	out := strings.Join(values, ",")
	fmt.Println(out)

	if clip {
		if err := clipboard.WriteAll(out); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
	}
	return nil
}
