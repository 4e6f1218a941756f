package main

import (
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestRequiredFlagsErrors(t *testing.T) {
	tests := []struct {
		name    string
		cmd     func() *cobra.Command
		args    []string
		wantErr string
	}{
		{name: "read missing protocol", cmd: newReadCmd, args: []string{"--gateway", "10.0.0.1", "--name", "Foo", "--type", "DINT"}, wantErr: "required flag(s) \"protocol\" not set"},
		{name: "read missing gateway", cmd: newReadCmd, args: []string{"--protocol", "ab_eip", "--name", "Foo", "--type", "DINT"}, wantErr: "required flag(s) \"gateway\" not set"},
		{name: "write missing value", cmd: newWriteCmd, args: []string{"--protocol", "ab_eip", "--gateway", "10.0.0.1", "--name", "Foo", "--type", "DINT"}, wantErr: "required flag(s) \"value\" not set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(tt.args)
			err := cmd.Execute()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error: got %q want %q", err.Error(), tt.wantErr)
			}
		})
	}
}
