package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nconklindev/refmatch/internal/config"
	"github.com/nconklindev/refmatch/internal/logging"
	"github.com/nconklindev/refmatch/internal/output"
	"github.com/nconklindev/refmatch/internal/reconcile"
	"github.com/nconklindev/refmatch/internal/tableio"
	"github.com/nconklindev/refmatch/internal/types"
)

type runFlags struct {
	newOutputs     []string
	replaceOutputs []string
	keepOutputs    []string
	format         string
	template       string
	dryRun         bool
}

func (a *App) newRunCommand() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Match, apply overrides and export without the terminal UI",
		Long: `Run reads the raw and reference files, builds the key mapping, applies it
to the raw data, applies the review and preview overrides from the override
file, and writes calibrated_data and updated_mapping files.

Columns and outputs come from flags, REFMATCH_* environment variables or the
config file.`,
		Example: `  refmatch run --raw raw.csv --reference ref.xlsx \
    --raw-keys ID,Site --reference-keys Code,Region \
    --fields Val --new Val=Calibrated --replace-keep Unit=Unit

  refmatch run --config job.yaml --dry-run --template fixes.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.String("raw", "", "raw data file (csv, xlsx, json, sqlite)")
	flags.String("raw-sheet", "", "sheet or table of the raw file")
	flags.Bool("raw-transpose", false, "swap rows and columns of the raw data")
	flags.String("reference", "", "reference mapping file (csv, xlsx, json, sqlite)")
	flags.String("reference-sheet", "", "sheet or table of the reference file")
	flags.Bool("reference-transpose", false, "swap rows and columns of the reference data")
	flags.StringSlice("raw-keys", nil, "raw key columns, in order")
	flags.StringSlice("reference-keys", nil, "reference key columns paired with --raw-keys")
	flags.StringSlice("fields", nil, "reference columns to carry into the raw data")
	flags.String("overrides", "", "YAML file of manual mappings")
	flags.String("output-dir", "", "directory for exported files (default \".\")")
	flags.StringSlice("formats", nil, "export formats: csv, xlsx (default csv,xlsx)")

	flags.StringArrayVar(&f.newOutputs, "new", nil, "write FIELD to a new column: FIELD=COLUMN")
	flags.StringArrayVar(&f.replaceOutputs, "replace", nil, "overwrite a raw column with FIELD: FIELD=COLUMN")
	flags.StringArrayVar(&f.keepOutputs, "replace-keep", nil, "overwrite and keep the original: FIELD=COLUMN[:BACKUP]")
	flags.StringVarP(&f.format, "output", "o", "", "report format: table, json, yaml (default table on a terminal, json otherwise)")
	flags.StringVar(&f.template, "template", "", "write an override template for the remaining unmatched keys")
	flags.BoolVar(&f.dryRun, "dry-run", false, "report without writing export files")

	bindings := map[string]string{
		config.KeyRaw + ".path":            "raw",
		config.KeyRaw + ".sheet":           "raw-sheet",
		config.KeyRaw + ".transpose":       "raw-transpose",
		config.KeyReference + ".path":      "reference",
		config.KeyReference + ".sheet":     "reference-sheet",
		config.KeyReference + ".transpose": "reference-transpose",
		config.KeyRawKeys:                  "raw-keys",
		config.KeyReferenceKeys:            "reference-keys",
		config.KeyFields:                   "fields",
		config.KeyOverrides:                "overrides",
		config.KeyOutputDir:                "output-dir",
		config.KeyFormats:                  "formats",
	}
	for key, name := range bindings {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("Failed to bind %s flag: %v", name, err))
		}
	}
	return cmd
}

func (a *App) run(cmd *cobra.Command, f *runFlags) error {
	ctx := cmd.Context()
	log := logging.FromContext(ctx)
	cfg := a.config

	format, err := output.ParseFormat(f.format)
	if err != nil {
		return err
	}

	flagOutputs, err := parseOutputFlags(f)
	if err != nil {
		return err
	}
	if len(flagOutputs) > 0 {
		cfg.Outputs = flagOutputs
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	raw, err := tableio.ReadTable(cfg.Raw.Path, cfg.Raw.ReadOptions())
	if err != nil {
		return err
	}
	log.Info().Str("file", cfg.Raw.Path).Int("rows", len(raw.Rows)).Msg("Loaded raw data")

	ref, err := tableio.ReadTable(cfg.Reference.Path, cfg.Reference.ReadOptions())
	if err != nil {
		return err
	}
	log.Info().Str("file", cfg.Reference.Path).Int("rows", len(ref.Rows)).Msg("Loaded reference data")

	s, err := reconcile.NewSession(ctx, raw, ref, cfg.Selection())
	if err != nil {
		return err
	}

	if cfg.Overrides != "" {
		overrides, err := config.LoadOverrides(cfg.Overrides)
		if err != nil {
			return err
		}
		if _, err := overrides.Apply(s); err != nil {
			return err
		}
	}

	if f.template != "" {
		if err := config.WriteOverrides(f.template, config.Template(s.Unmatched(), cfg.Fields)); err != nil {
			return err
		}
		log.Info().Str("file", f.template).Msg("Wrote override template")
	}

	var summary types.RunResult
	if f.dryRun {
		summary = s.Summary()
	} else {
		plan, err := cfg.ExportPlan()
		if err != nil {
			return err
		}
		res, err := tableio.Export(ctx, s, plan)
		if err != nil {
			return err
		}
		summary = *res
	}
	summary.RawFile = cfg.Raw.Path
	summary.ReferenceFile = cfg.Reference.Path

	report := output.NewReport(s, summary)
	return output.NewFormatter(output.DetectFormat(string(format))).Format(cmd.OutOrStdout(), report)
}

func parseOutputFlags(f *runFlags) ([]types.OutputConfig, error) {
	var outputs []types.OutputConfig
	groups := []struct {
		specs []string
		mode  types.OutputMode
		keep  bool
	}{
		{f.newOutputs, types.ModeNew, false},
		{f.replaceOutputs, types.ModeReplace, false},
		{f.keepOutputs, types.ModeReplace, true},
	}
	for _, g := range groups {
		for _, spec := range g.specs {
			out, err := config.ParseOutputSpec(g.mode, g.keep, spec)
			if err != nil {
				return nil, err
			}
			outputs = append(outputs, out)
		}
	}
	return outputs, nil
}
