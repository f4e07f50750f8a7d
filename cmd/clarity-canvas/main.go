package main

import (
	"os"
	"strings"

	"clarity-canvas/internal/cli"
)

// showCommand maps a bare entity id to the command that shows it.
func showCommand(s string) []string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "task-") && len(s) > len("task-"):
		return []string{"tasks", "show"}
	case strings.HasPrefix(s, "grp-") && len(s) > len("grp-"):
		return []string{"groups", "show"}
	}
	return nil
}

// rewriteDirectLookupArgs makes `clarity-canvas <id>` work like
// `clarity-canvas tasks show <id>` (or `groups show`). Cobra treats the first
// non-flag token as a subcommand, so argv is rewritten before parsing.
//
// Persistent flags may come first (`clarity-canvas --dir ... <id>`), so the
// first positional token is what counts, not argv[1].
func rewriteDirectLookupArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	// Unknown flags are skipped without consuming a value so the id is never eaten.
	valueFlags := map[string]bool{
		"--dir":       true,
		"--workspace": true,
		"--format":    true,
		"--log-level": true,
	}
	boolFlags := map[string]bool{
		"--pretty":  true,
		"--connect": true,
	}

	insert := func(at int, sub []string) []string {
		out := make([]string, 0, len(argv)+len(sub))
		out = append(out, argv[:at]...)
		out = append(out, sub...)
		out = append(out, argv[at:]...)
		return out
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) {
				if sub := showCommand(argv[i+1]); sub != nil {
					return insert(i+1, sub)
				}
			}
			return argv
		}

		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") || boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++
			}
			continue
		}

		if sub := showCommand(a); sub != nil {
			return insert(i, sub)
		}
		return argv
	}

	return argv
}

func main() {
	os.Args = rewriteDirectLookupArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
