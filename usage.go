package plano

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// usageLine returns e.g. "prog build [-h] [--jobs JOBS] TARGET [FILES ...]".
func usageLine(program string, cmd *Command) string {
	parts := []string{program}
	parts = append(parts, cmd.Path...)
	parts = append(parts, "[-h]")
	for _, p := range cmd.Params {
		switch p.Kind {
		case FlagKind:
			parts = append(parts, "[--"+p.DisplayName()+"]")
		case OptionKind:
			parts = append(parts, fmt.Sprintf("[--%s %s]", p.DisplayName(), p.metavar()))
		}
	}
	for _, p := range cmd.Params {
		if p.Kind != PositionalKind {
			continue
		}
		switch {
		case p.Variadic:
			parts = append(parts, fmt.Sprintf("[%s ...]", p.metavar()))
		case !p.Required:
			parts = append(parts, "["+p.metavar()+"]")
		default:
			parts = append(parts, p.metavar())
		}
	}
	return strings.Join(parts, " ")
}

// WriteUsage writes the generated help text of cmd.
func WriteUsage(w io.Writer, program string, cmd *Command) {
	fmt.Fprintf(w, "Usage: %s\n", usageLine(program, cmd))

	if text := firstNonEmpty(cmd.Description, cmd.Help); text != "" {
		fmt.Fprintf(w, "\n%s\n", text)
	}

	var positionals, options []ParameterSpec
	for _, p := range cmd.Params {
		if p.Kind == PositionalKind {
			positionals = append(positionals, p)
		} else {
			options = append(options, p)
		}
	}

	if len(positionals) > 0 {
		fmt.Fprintf(w, "\nPositional arguments:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, p := range positionals {
			fmt.Fprintf(tw, "  %s\t%s\n", p.metavar(), p.Help)
		}
		tw.Flush()
	}

	fmt.Fprintf(w, "\nOptions:\n")
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "  -h, --help\tShow this help message and exit\n")
	for _, p := range options {
		name := "--" + p.DisplayName()
		if p.Shorthand != "" {
			name = "-" + p.Shorthand + ", " + name
		}
		if p.Kind == OptionKind {
			name += " " + p.metavar()
		}
		fmt.Fprintf(tw, "  %s\t%s\n", name, optionHelp(p))
	}
	tw.Flush()
}

// optionHelp appends the default to the help text, except for flags and
// empty defaults.
func optionHelp(p ParameterSpec) string {
	if p.Kind == FlagKind || isEmptyDefault(p.Default) {
		return p.Help
	}
	if p.Help == "" {
		return fmt.Sprintf("Default value is %s", formatValue(p.Default))
	}
	return fmt.Sprintf("%s (default %s)", p.Help, formatValue(p.Default))
}

func isEmptyDefault(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []string:
		return len(x) == 0
	}
	return false
}

// writeListing writes the visible children of a group as a command table.
func writeListing(w io.Writer, node *Node) {
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	for child := range node.Children() {
		if child.hidden() {
			continue
		}
		fmt.Fprintf(tw, "  %s\t%s\n", child.Name, child.summary())
	}
	tw.Flush()
}

// WriteGroupUsage writes the help text of a group node.
func WriteGroupUsage(w io.Writer, program string, node *Node) {
	path := strings.Join(append([]string{program}, node.Path...), " ")
	fmt.Fprintf(w, "Usage: %s <command> [args...]\n", path)
	if node.Help != "" {
		fmt.Fprintf(w, "\n%s\n", node.Help)
	}
	fmt.Fprintf(w, "\nCommands:\n")
	writeListing(w, node)
	fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
