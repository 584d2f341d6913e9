// Package cli implements the biomarker-cli command tree. Commands run the
// assessment pipeline in-process and print JSON.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/biomarker-assessment-engine/internal/audit"
	"github.com/biomarker-assessment-engine/internal/config"
	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/logging"
	"github.com/biomarker-assessment-engine/internal/reference"
	"github.com/biomarker-assessment-engine/internal/service"
)

// Version is injected at build time.
var Version = "dev"

// RootOptions holds global flags.
type RootOptions struct {
	DataDir  string
	Overlay  string
	LogLevel string
	Audit    bool
}

// env carries initialized dependencies to subcommands.
type env struct {
	cfg      *config.LiteConfig
	logger   *logrus.Logger
	service  *service.AssessmentService
	audit    domain.AuditStore
	observer *audit.Observer
}

func (e *env) Close() {
	if e.observer != nil {
		e.observer.Close()
	}
	if e.audit != nil {
		if err := e.audit.Close(); err != nil {
			e.logger.WithError(err).Warn("Failed to close audit store")
		}
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "biomarker-cli",
		Short:         "Extract, screen and score blood test biomarkers",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.DataDir, "data-dir", "", "data directory for the audit database (default: $BIOMARKER_DATA_DIR or ~/.biomarker-engine)")
	pf.StringVar(&opts.Overlay, "reference", "", "YAML reference table overlay")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&opts.Audit, "audit", false, "record assessments in the local audit trail (also $BIOMARKER_AUDIT_ENABLED)")

	cmd.AddCommand(
		newAssessCmd(opts),
		newExtractCmd(opts),
		newCatalogCmd(opts),
		newAuditCmd(opts),
		newSetupCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// bootstrap resolves configuration and builds the service. withAudit opens the
// audit store when the configuration enables it.
func bootstrap(cmd *cobra.Command, opts *RootOptions, withAudit bool) (*env, error) {
	cfg := config.LoadLiteConfig()
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.Overlay != "" {
		cfg.ReferenceOverlay = opts.Overlay
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	} else {
		cfg.LogLevel = "warn"
	}
	if opts.Audit {
		cfg.AuditEnabled = true
	}

	logger := logging.NewWithOutput(cfg.LogLevel, "text", cmd.ErrOrStderr())

	tables, err := reference.LoadFile(cfg.ReferenceOverlay)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, logger: logger}
	var observers []service.OutcomeObserver
	if withAudit && cfg.AuditEnabled {
		if err := cfg.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := audit.NewSQLiteStore(cfg.AuditDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to open audit store: %w", err)
		}
		e.audit = store
		e.observer = audit.NewObserver(store, tables.Version, logger)
		observers = append(observers, e.observer)
	}

	svc, err := service.NewAssessmentService(logger, tables, observers...)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.service = svc
	return e, nil
}

// readInput returns the contents of path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read report: %w", err)
	}
	return string(data), nil
}

// parseOverrides turns Name=value pairs into an override map.
func parseOverrides(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid override %q (expected Name=value)", pair)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid override %q: %w", pair, err)
		}
		out[strings.TrimSpace(name)] = value
	}
	return out, nil
}

func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
