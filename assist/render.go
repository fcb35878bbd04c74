package assist

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	termai "github.com/termai/termai"
)

var titleColor = color.New(color.FgCyan, color.Bold)

// Render writes the outcome to w. Skipped outcomes produce no output; errors
// render as plain readable text so the shell hook never surfaces a stack
// trace at the prompt.
func Render(w io.Writer, out *termai.Outcome) {
	if out == nil || out.Skipped {
		return
	}
	if out.Error != nil {
		fmt.Fprintln(w, out.Error.Message)
		return
	}

	titleColor.Fprintf(w, "\n🤖 %s:\n", out.Title)
	for _, line := range strings.Split(out.Text, "\n") {
		fmt.Fprintf(w, "   %s\n", line)
	}
	fmt.Fprintln(w)
}
