// Package safety gates destructive storage operations behind an
// interactive confirmation, with flags to answer ahead of time.
package safety

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Options carries the global safety flags.
type Options struct {
	// DryRun prints the planned action but declines every confirmation.
	DryRun bool
	// Yes answers every confirmation without prompting.
	Yes bool
}

// Confirm asks before a destructive action. Under DryRun the planned
// action is printed to out and declined without prompting; under Yes it
// is agreed to without prompting.
func Confirm(opts Options, in io.Reader, out io.Writer, action string) (bool, error) {
	action = strings.TrimSpace(action)
	if opts.DryRun {
		if out != nil {
			fmt.Fprintf(out, "dry-run: %s (declined)\n", action)
		}
		return false, nil
	}
	if opts.Yes {
		return true, nil
	}
	if out != nil {
		fmt.Fprintf(out, "%s [y/N]: ", action)
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	return affirmative(line), nil
}

func affirmative(answer string) bool {
	switch strings.TrimSpace(strings.ToLower(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
