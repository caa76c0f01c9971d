package plano

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// completeCommand is the hidden command completion scripts call back into.
const completeCommand = cobra.ShellCompRequestCmd

// cobraTree mirrors the registry as a cobra command tree. The tree is
// only used to generate completion scripts and answer completion
// requests; commands are never executed through it.
func cobraTree(program string, reg *Registry) *cobra.Command {
	root := &cobra.Command{
		Use:               program,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}
	GlobalFlags(program).VisitAll(func(f *pflag.Flag) {
		if f.Name != "help" {
			root.PersistentFlags().AddFlag(f)
		}
	})
	addCobraChildren(root, reg.Root())
	return root
}

func addCobraChildren(parent *cobra.Command, node *Node) {
	for child := range node.Children() {
		if child.hidden() {
			continue
		}
		c := &cobra.Command{
			Use:   child.Name,
			Short: child.summary(),
			Run:   func(*cobra.Command, []string) {},
		}
		if child.Command != nil {
			c.Flags().AddFlagSet(commandFlags(child.Command, Values{}))
		}
		addCobraChildren(c, child)
		parent.AddCommand(c)
	}
}

// WriteCompletion writes the completion script for shell (bash, zsh, fish
// or powershell).
func WriteCompletion(w io.Writer, program string, reg *Registry, shell string) error {
	root := cobraTree(program, reg)
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(w, true)
	case "zsh":
		return root.GenZshCompletion(w)
	case "fish":
		return root.GenFishCompletion(w, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(w)
	}
	return Fail("unsupported shell %q (want bash, zsh, fish or powershell)", shell)
}

// registerCompletion adds the hidden completion commands to reg.
func registerCompletion(program string, reg *Registry) {
	reg.MustRegister("completion", func(ctx context.Context, shell string) error {
		return WriteCompletion(Stdout(ctx), program, reg, shell)
	},
		Help("Generate a shell completion script"),
		Description("Prints a completion script for bash, zsh, fish or powershell.\nSource it from your shell's startup file."),
		Params(Arg("shell", "Target shell").Meta("SHELL")),
		Hidden(),
	)

	reg.MustRegister(completeCommand, func(ctx context.Context, args ...string) error {
		root := cobraTree(program, reg)
		root.SetArgs(append([]string{completeCommand}, args...))
		root.SetOut(Stdout(ctx))
		root.SetErr(io.Discard)
		return root.ExecuteContext(ctx)
	},
		Params(Rest("args", "Words to complete")),
		Hidden(),
		Passthrough(),
	)
}
