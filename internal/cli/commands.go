package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/biomarker-assessment-engine/internal/audit"
	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/report"
)

func newAssessCmd(opts *RootOptions) *cobra.Command {
	var (
		file      string
		age       int
		sex       string
		symptoms  []string
		history   string
		overrides []string
		brief     bool
	)

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Run the full assessment pipeline on a report",
		Long: "Extract biomarkers from a report, apply manual overrides, check completeness,\n" +
			"screen for emergencies and score the metabolic, inflammation and oxygen domains.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			manual, err := parseOverrides(overrides)
			if err != nil {
				return err
			}
			if text == "" && len(manual) == 0 {
				return errors.New("either --file or --override is required")
			}

			e, err := bootstrap(cmd, opts, true)
			if err != nil {
				return err
			}
			defer e.Close()

			outcome, err := e.service.Assess(cmd.Context(), text, manual, domain.UserContext{
				Age:            age,
				SexContext:     domain.SexContext(sex),
				Symptoms:       symptoms,
				MedicalHistory: history,
			})
			if err != nil {
				return err
			}

			if brief {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), report.Brief(outcome))
				return err
			}
			return printJSON(cmd.OutOrStdout(), outcome)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "report text file, or - for stdin")
	f.IntVar(&age, "age", 0, "chronological age in years [REQUIRED]")
	f.StringVar(&sex, "sex", "", "sex context: menstruating, non_menstruating, post_menopausal, not_applicable [REQUIRED]")
	f.StringArrayVar(&symptoms, "symptom", nil, "reported symptom (repeatable)")
	f.StringVar(&history, "history", "", "free text medical history")
	f.StringArrayVar(&overrides, "override", nil, "manual value as Name=value (repeatable)")
	f.BoolVar(&brief, "brief", false, "print the profile brief instead of JSON")
	cmd.MarkFlagRequired("age")
	cmd.MarkFlagRequired("sex")

	return cmd
}

func newExtractCmd(opts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract biomarkers from a report and check completeness",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, file)
			if err != nil {
				return err
			}

			e, err := bootstrap(cmd, opts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			profile := e.service.Extract(text)
			return printJSON(cmd.OutOrStdout(), struct {
				Profile    domain.BiomarkerProfile  `json:"profile"`
				Validation domain.ValidationVerdict `json:"validation"`
			}{profile, e.service.Validate(profile)})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "report text file, or - for stdin")
	return cmd
}

func newCatalogCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List supported biomarkers with units and reference ranges",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap(cmd, opts, false)
			if err != nil {
				return err
			}
			defer e.Close()
			return printJSON(cmd.OutOrStdout(), e.service.Tables().Catalog.All())
		},
	}
}

func newAuditCmd(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the local assessment audit trail",
	}

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write every audit record as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap(cmd, opts, true)
			if err != nil {
				return err
			}
			defer e.Close()
			if e.audit == nil {
				return errors.New("audit trail is disabled")
			}

			if out == "-" {
				return audit.WriteExport(cmd.Context(), e.audit, cmd.OutOrStdout())
			}
			if out == "" {
				out = filepath.Join(e.cfg.ExportDir(), fmt.Sprintf("audit-%s.json", time.Now().UTC().Format("20060102T150405Z")))
			}
			fh, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			if err := audit.WriteExport(cmd.Context(), e.audit, fh); err != nil {
				fh.Close()
				return err
			}
			if err := fh.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "", "output file, or - for stdout (default: a timestamped file in the export directory)")

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Count audit records by outcome status",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap(cmd, opts, true)
			if err != nil {
				return err
			}
			defer e.Close()
			if e.audit == nil {
				return errors.New("audit trail is disabled")
			}

			total, err := e.audit.Count(cmd.Context())
			if err != nil {
				return err
			}
			byStatus, err := e.audit.CountByStatus(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"total":     total,
				"by_status": byStatus,
			})
		},
	}

	cmd.AddCommand(export, summary)
	return cmd
}
