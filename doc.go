/*
Package plano turns ordinary Go functions into the subcommands of a
command-line program.

A command is a function of the form

	func(ctx context.Context, <one argument per parameter>) error

registered under a dotted path together with explicit parameter specs.
The value type of each parameter follows from its default: a positional
from Arg has none and is required, an option from Opt takes its type from
the default, a bool default makes a flag, and Rest collects the remaining
positionals into a final ...string argument.

	func Greeting(ctx context.Context, message string) error {
		fmt.Fprintln(plano.Stdout(ctx), message)
		return nil
	}

	func main() {
		app := plano.New(plano.Config{Name: "tool", Version: "1.0.0"})
		app.Command("greeting", Greeting,
			plano.Help("Print a greeting"),
			plano.Params(plano.Opt("message", "Howdy", "The greeting")),
		)
		app.Main()
	}

Running the program:

	$ tool greeting --message Hello
	--> greeting (message="Hello")
	Hello
	<-- greeting
	OK (0.0s)

# Dispatch

The dispatcher resolves the longest registered path from argv, binds the
remaining tokens to the command's parameters and calls it. Trace markers,
the closing OK/FAILED/SKIPPED line and usage errors go to stderr; command
output goes to stdout.

A command may run another command with Call or Invoke. The nested call is
traced one level deeper and its error is returned to the caller.

# Exit codes

	0  success, or help requested
	1  failure: Fail, any other error, or a panic
	2  usage error: unknown command or option, missing or invalid argument
	3  skipped: Skip

# Helpers

The files, procs and archive packages provide the file, process and
tar.gz helpers command bodies typically need. The cmd/plano binary runs
commands declared in a YAML planofile.
*/
package plano
