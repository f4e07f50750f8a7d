package main

import (
	"reflect"
	"testing"
)

func TestRewriteDirectLookupArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"clarity-canvas"},
			want: []string{"clarity-canvas"},
		},
		{
			name: "task id first token",
			in:   []string{"clarity-canvas", "task-abc123"},
			want: []string{"clarity-canvas", "tasks", "show", "task-abc123"},
		},
		{
			name: "group id first token",
			in:   []string{"clarity-canvas", "grp-abc123"},
			want: []string{"clarity-canvas", "groups", "show", "grp-abc123"},
		},
		{
			name: "task id after value flag",
			in:   []string{"clarity-canvas", "--dir", "./tmp-test-ws", "task-abc123"},
			want: []string{"clarity-canvas", "--dir", "./tmp-test-ws", "tasks", "show", "task-abc123"},
		},
		{
			name: "task id after equals flag",
			in:   []string{"clarity-canvas", "--dir=./tmp-test-ws", "task-abc123"},
			want: []string{"clarity-canvas", "--dir=./tmp-test-ws", "tasks", "show", "task-abc123"},
		},
		{
			name: "task id after bool flag",
			in:   []string{"clarity-canvas", "--pretty", "task-abc123"},
			want: []string{"clarity-canvas", "--pretty", "tasks", "show", "task-abc123"},
		},
		{
			name: "task id after double dash",
			in:   []string{"clarity-canvas", "--dir", "./tmp-test-ws", "--", "task-abc123"},
			want: []string{"clarity-canvas", "--dir", "./tmp-test-ws", "--", "tasks", "show", "task-abc123"},
		},
		{
			name: "bare prefix not rewritten",
			in:   []string{"clarity-canvas", "task-"},
			want: []string{"clarity-canvas", "task-"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"clarity-canvas", "tasks", "show", "task-abc123"},
			want: []string{"clarity-canvas", "tasks", "show", "task-abc123"},
		},
		{
			name: "unknown command not rewritten",
			in:   []string{"clarity-canvas", "wat"},
			want: []string{"clarity-canvas", "wat"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteDirectLookupArgs(append([]string(nil), tt.in...))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}
