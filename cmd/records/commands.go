package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	records "github.com/goliatone/go-records"
	"github.com/goliatone/go-records/schema/openapi"
)

func newProjectCmd(a *app) *cobra.Command {
	var output string
	var indent bool

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project option pairs and write the resulting records as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := a.readRecords(cmd)
			if err != nil {
				return err
			}
			projector, err := a.projector()
			if err != nil {
				return err
			}
			out, err := projector.ProjectContext(cmd.Context(), input)
			if err != nil {
				return err
			}
			a.logger.Info("projected records", zap.Int("records", len(out)))
			return writeJSON(cmd, output, out, indent)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output JSON file (- for stdout)")
	cmd.Flags().BoolVar(&indent, "indent", false, "Indent the JSON output")
	return cmd
}

func newDescribeCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe the fields of the projected records",
		Long: `Describe the fields of the projected records.

The text format lists one dotted path and type per line. The openapi format
writes an OpenAPI document whose Record component covers every field.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := a.readRecords(cmd)
			if err != nil {
				return err
			}
			projector, err := a.projector()
			if err != nil {
				return err
			}
			out, err := projector.ProjectContext(cmd.Context(), input)
			if err != nil {
				return err
			}
			switch format {
			case "text":
				for _, field := range records.Describe(out) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", field.Path, field.Type)
				}
				return nil
			case "openapi":
				doc, err := openapi.NewGenerator().Generate(out)
				if err != nil {
					return err
				}
				return writeJSON(cmd, "-", doc, true)
			default:
				return fmt.Errorf("unknown format %q (valid: text, openapi)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or openapi")
	return cmd
}

func newTraceCmd(a *app) *cobra.Command {
	var index int

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Explain where every field of one projected record came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := a.readRecords(cmd)
			if err != nil {
				return err
			}
			if index < 0 || index >= len(input) {
				return fmt.Errorf("index %d out of range (%d records)", index, len(input))
			}
			projector, err := a.projector()
			if err != nil {
				return err
			}
			trace, err := projector.Trace(input[index], index)
			if err != nil {
				return err
			}
			return writeJSON(cmd, "-", trace, true)
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "Index of the record to trace")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the YAML configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(a))
	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var output string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to a YAML file",
		Long: `Write the effective configuration to a YAML file.

The file holds the defaults merged with --config, RECORDS_* variables and the
field flags, so it can be edited and passed back with --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", output)
				}
			}
			if err := a.cfg.Save(output); err != nil {
				return err
			}
			a.logger.Info("wrote config", zap.String("path", output))
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "records.yaml", "Configuration file to write")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
