package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	PromptColor  = "\033[36m" // Cyan
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"
	BoldColor    = "\033[1m"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	color := isatty.IsTerminal(os.Stdout.Fd())
	if err := execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, color); err != nil {
		if color {
			fmt.Fprintf(os.Stderr, "%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		} else {
			fmt.Fprintf(os.Stderr, "✗ Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// execute runs one command line against a fresh session and closes it
// afterwards.
func execute(args []string, in io.Reader, out, errOut io.Writer, color bool) error {
	s := &session{
		opts:   &rootOptions{},
		in:     in,
		out:    out,
		errOut: errOut,
		color:  color,
	}
	defer s.close()

	cmd := newRootCommand(s)
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.Execute()
}
