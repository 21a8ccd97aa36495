package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/plotconv/pkg/checkpoint"
)

// NewInlineCommand creates the in-place conversion command.
func NewInlineCommand(globals *Globals) *cobra.Command {
	cc := newConvertCommand(globals, checkpoint.ModeInline)

	cmd := &cobra.Command{
		Use:   "inline",
		Short: "Inline plot conversion",
		Long: `Convert a plot file in place. The file is renamed to its optimized
name once every iteration has been written. Interrupting the run prints a
checkpoint offset that a later invocation resumes from.`,
		Args: cobra.NoArgs,
		RunE: cc.run,
	}

	cc.registerFlags(cmd)

	return cmd
}

// NewOutlineCommand creates the two-file conversion command.
func NewOutlineCommand(globals *Globals) *cobra.Command {
	cc := newConvertCommand(globals, checkpoint.ModeOutline)

	cmd := &cobra.Command{
		Use:   "outline",
		Short: "Separate output file plot conversion",
		Long: `Convert a plot file into a new output file, leaving the input untouched.
A fresh run refuses to overwrite an existing output; a resumed run continues
the output written by the interrupted one.`,
		Args: cobra.NoArgs,
		RunE: cc.run,
	}

	cc.registerFlags(cmd)
	cmd.Flags().StringVarP(&cc.output, "write", "w", "", "Output file")

	_ = cmd.MarkFlagRequired("write")

	return cmd
}
