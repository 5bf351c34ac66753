package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const maxHistory = 1000

// repl is the interactive shell state.
type repl struct {
	s           *session
	history     []string
	historyFile string
}

func newShellCommand(s *session) *cobra.Command {
	var historyFile string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.shell(historyFile)
		},
	}
	cmd.Flags().StringVar(&historyFile, "history", getHistoryPath(), "history file, empty to disable")
	return cmd
}

func (s *session) shell(historyFile string) error {
	r := &repl{s: s, historyFile: historyFile}
	r.loadHistory()
	defer r.saveHistory()

	r.printBanner()
	r.run()
	return nil
}

func (r *repl) printBanner() {
	out, s := r.s.out, r.s
	bannerWidth := 39
	versionLine := fmt.Sprintf("growup v%s", Version)
	padding := max(bannerWidth-len(versionLine)-2, 0)
	leftPad := padding / 2
	rightPad := padding - leftPad

	fmt.Fprintln(out)
	fmt.Fprintln(out, s.paint(BoldColor+PromptColor, "╔═══════════════════════════════════════╗"))
	fmt.Fprintln(out, s.paint(BoldColor+PromptColor, fmt.Sprintf("║ %*s%s%*s ║", leftPad, "", versionLine, rightPad, "")))
	fmt.Fprintln(out, s.paint(BoldColor+PromptColor, "║   Versioned, indexed object stores    ║"))
	fmt.Fprintln(out, s.paint(BoldColor+PromptColor, "╚═══════════════════════════════════════╝"))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	fmt.Fprintln(out)
}

func (r *repl) run() {
	reader := bufio.NewReader(r.s.in)
	for {
		fmt.Fprint(r.s.out, r.prompt())

		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			fmt.Fprintln(r.s.out)
			fmt.Fprintln(r.s.out, r.s.paint(SuccessColor, "Goodbye!"))
			return
		}
		input = strings.TrimSpace(strings.TrimSuffix(input, "\n"))
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, ".") {
			if !r.handleCommand(input) {
				fmt.Fprintln(r.s.out, r.s.paint(SuccessColor, "Goodbye!"))
				return
			}
			continue
		}

		r.addToHistory(input)
		if err := r.exec(input); err != nil {
			r.s.failure(err)
		}
	}
}

func (r *repl) prompt() string {
	return r.s.paint(PromptColor, fmt.Sprintf("growup (%s)>", r.s.client.Name())) + " "
}

// exec runs one command line through the command tree, sharing the open
// session.
func (r *repl) exec(line string) error {
	args, err := splitArgs(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	if args[0] == "shell" {
		return fmt.Errorf("already in the shell")
	}

	// Defining the flags resets the options to their defaults; keep the
	// ones the shell was started with, and drop per-line overrides after.
	saved := *r.s.opts
	defer func() { *r.s.opts = saved }()
	cmd := newRootCommand(r.s)
	*r.s.opts = saved

	cmd.SetArgs(args)
	cmd.SetOut(r.s.out)
	cmd.SetErr(r.s.out)
	return cmd.Execute()
}

// handleCommand runs a dot command. It returns false when the shell should
// exit.
func (r *repl) handleCommand(input string) bool {
	parts := strings.Fields(input)
	s := r.s

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit", ".q":
		return false

	case ".help", ".h", ".?":
		r.printHelp()

	case ".stores":
		if err := r.exec("stores"); err != nil {
			s.failure(err)
		}

	case ".databases", ".dbs":
		if err := r.exec("databases"); err != nil {
			s.failure(err)
		}

	case ".use":
		if len(parts) > 1 {
			s.use(parts[1])
			s.success("using database: %s", parts[1])
		} else {
			s.failure(fmt.Errorf("usage: .use <database>"))
		}

	case ".clear", ".cls":
		fmt.Fprint(s.out, "\033[H\033[2J")

	case ".history":
		r.printHistory()

	case ".version":
		fmt.Fprintf(s.out, "growup version %s\n", Version)

	case ".source":
		if len(parts) > 1 {
			if err := r.sourceFile(parts[1]); err != nil {
				s.failure(err)
			}
		} else {
			s.failure(fmt.Errorf("usage: .source <file>"))
		}

	default:
		s.failure(fmt.Errorf("unknown command: %s (type .help for commands)", parts[0]))
	}
	return true
}

func (r *repl) printHelp() {
	out, s := r.s.out, r.s
	fmt.Fprintln(out)
	fmt.Fprintln(out, s.paint(BoldColor+PromptColor, "Special Commands:"))
	fmt.Fprintln(out, "  .help, .h        Show this help message")
	fmt.Fprintln(out, "  .quit, .exit     Exit the shell")
	fmt.Fprintln(out, "  .databases       List all databases")
	fmt.Fprintln(out, "  .stores          List stores of the current database")
	fmt.Fprintln(out, "  .use <db>        Switch to another database")
	fmt.Fprintln(out, "  .source <file>   Run the commands in a file")
	fmt.Fprintln(out, "  .history         Show command history")
	fmt.Fprintln(out, "  .clear           Clear the screen")
	fmt.Fprintln(out, "  .version         Show version info")
	fmt.Fprintln(out)
	fmt.Fprintln(out, s.paint(BoldColor+PromptColor, "Store Commands:"))
	fmt.Fprintln(out, "  add-store <store> [--index f] [--unique f] [--key-path p] [--replace]")
	fmt.Fprintln(out, "  del-store <store> | has-store <store> | stores")
	fmt.Fprintln(out, "  set <store> <json> [--key k] [--no-spread]")
	fmt.Fprintln(out, "  get <store> <key>")
	fmt.Fprintln(out, "  find <store> [--index i] [--start k] [--end k] [--direction d]")
	fmt.Fprintln(out, "  page <store> [--page n] [--num n] [range flags]")
	fmt.Fprintln(out, "  count <store> [--start k] [--end k]")
	fmt.Fprintln(out, "  del <store> <key> [end] | clear <store>")
	fmt.Fprintln(out, "  export <store> <url> | import <store> <url>")
	fmt.Fprintln(out, "  history | restore <id> | snapshot <name> | recover <name>")
	fmt.Fprintln(out, "  remote add|list|remove | push | pull")
	fmt.Fprintln(out)
}

func (r *repl) addToHistory(cmd string) {
	if len(r.history) > 0 && r.history[len(r.history)-1] == cmd {
		return
	}
	r.history = append(r.history, cmd)
	if len(r.history) > maxHistory {
		r.history = r.history[len(r.history)-maxHistory:]
	}
}

func (r *repl) printHistory() {
	if len(r.history) == 0 {
		fmt.Fprintln(r.s.out, "No command history")
		return
	}
	start := max(len(r.history)-20, 0)
	for i := start; i < len(r.history); i++ {
		fmt.Fprintf(r.s.out, "  %3d  %s\n", i+1, r.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".growup_history")
}

func (r *repl) loadHistory() {
	if r.historyFile == "" {
		return
	}
	file, err := os.Open(r.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		r.history = append(r.history, scanner.Text())
	}
}

func (r *repl) saveHistory() {
	if r.historyFile == "" {
		return
	}
	file, err := os.Create(r.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	start := max(len(r.history)-maxHistory, 0)
	for i := start; i < len(r.history); i++ {
		_, _ = file.WriteString(r.history[i] + "\n")
	}
}

// sourceFile runs every command line of a file, skipping blank lines and
// lines starting with #.
func (r *repl) sourceFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	successCount, errorCount := 0, 0
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := r.exec(line); err != nil {
			fmt.Fprintln(r.s.out, r.s.paint(ErrorColor, fmt.Sprintf("[%d] ✗ %s", i+1, truncate(line, 50))))
			fmt.Fprintf(r.s.out, "      Error: %v\n", err)
			errorCount++
			continue
		}
		successCount++
	}

	r.s.success("source complete: %d succeeded, %d failed", successCount, errorCount)
	return nil
}

// splitArgs splits a command line into words. Single or double quotes group
// words and are removed; a backslash escapes the next character inside
// double quotes and outside quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inWord  bool
		quote   byte
	)

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			} else if ch == '\\' && quote == '"' && i+1 < len(line) {
				i++
				current.WriteByte(line[i])
			} else {
				current.WriteByte(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			inWord = true
		case ch == '\\' && i+1 < len(line):
			i++
			current.WriteByte(line[i])
			inWord = true
		case ch == ' ' || ch == '\t':
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteByte(ch)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inWord {
		args = append(args, current.String())
	}
	return args, nil
}

// truncate shortens a string to max length with ellipsis
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
