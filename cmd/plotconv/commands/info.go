package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/plotconv/pkg/config"
	"github.com/Sumatoshi-tech/plotconv/pkg/safeconv"
	"github.com/Sumatoshi-tech/plotconv/pkg/shuffle"
)

// Info output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown output format")

const geometryOK = "ok"

// infoReport is the plan of a conversion plus the result of the geometry check.
type infoReport struct {
	shuffle.Info `yaml:",inline"`

	Geometry string `json:"geometry" yaml:"geometry"`
}

type infoCommand struct {
	globals *Globals
	input   string
	memory  string
	format  string
}

// NewInfoCommand creates the command that reports partitioning and geometry
// without converting.
func NewInfoCommand(globals *Globals) *cobra.Command {
	ic := &infoCommand{globals: globals, format: FormatText}

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Plot and program information",
		Long:  "Report the geometry of a plot file and how a conversion would be partitioned.",
		Args:  cobra.NoArgs,
		RunE:  ic.run,
	}

	cmd.Flags().StringVarP(&ic.input, "read", "r", "", "Input plot file")
	cmd.Flags().StringVarP(&ic.memory, "memory", "m", config.DefaultMemoryBudget,
		"Memory budget per buffer (e.g. '512MB', '2GiB'; a bare number is megabytes)")
	cmd.Flags().StringVar(&ic.format, "format", FormatText, "Output format: text, json, yaml")

	_ = cmd.MarkFlagRequired("read")

	return cmd
}

func (ic *infoCommand) run(cmd *cobra.Command, _ []string) error {
	switch ic.format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, ic.format)
	}

	sess, err := ic.globals.open("info", cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.close()

	return sess.finish(cmd.Context(), ic.report(cmd, sess))
}

func (ic *infoCommand) report(cmd *cobra.Command, sess *session) error {
	budgetBytes, err := config.ParseMemoryBudget(stringSetting(cmd, "memory", ic.memory, sess.cfg.Convert.MemoryBudget))
	if err != nil {
		return err
	}

	engine, err := shuffle.New(ic.input, budgetBytes, sess.engineOptions(0)...)
	if err != nil {
		return err
	}

	rep := infoReport{Info: engine.Info(), Geometry: geometryOK}

	validateErr := engine.Descriptor().Validate()
	if validateErr != nil {
		rep.Geometry = validateErr.Error()
	}

	return writeInfo(cmd.OutOrStdout(), rep, ic.format)
}

func writeInfo(w io.Writer, rep infoReport, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(rep)
		if err != nil {
			return fmt.Errorf("encode info: %w", err)
		}

		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)

		err := enc.Encode(rep)
		if err != nil {
			return fmt.Errorf("encode info: %w", err)
		}

		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, infoTable(rep))

		return err
	}
}

func infoTable(rep infoReport) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.SeparateHeader = false

	tbl.AppendRows([]table.Row{
		{"Path", rep.Path},
		{"Id", rep.ID},
		{"Offset", rep.Offset},
		{"Nonces", rep.Nonces},
		{"Stagger", rep.Stagger},
		{"Partitions", rep.Partitions},
		{"Iterations", rep.Iterations},
		{"Block size", ibytes(rep.BlockSize)},
		{"Memory", ibytes(rep.UsedMemory)},
		{"Expected size", ibytes(rep.ExpectedSize)},
		{"Real size", ibytes(rep.RealSize)},
		{"Optimized name", rep.OptimizedName},
		{"Geometry", rep.Geometry},
	})

	return tbl.Render()
}

func ibytes(n int64) string {
	return fmt.Sprintf("%s (%d bytes)", humanize.IBytes(safeconv.ClampInt64ToUint64(n)), n)
}
