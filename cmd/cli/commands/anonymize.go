package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IacopoSb/AnonimaData/internal/export"
	"github.com/IacopoSb/AnonimaData/internal/privacy"
	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

type AnonymizeOptions struct {
	InputFile        string
	MetadataFile     string
	RolesFile        string
	Method           string
	Params           []string
	OutputFile       string
	Format           string
	ReportFile       string
	Seed             int64
	UnassignedPolicy string
	Delimiter        string
	Precision        int
	Compress         bool
}

func NewAnonymizeCmd(global *GlobalOptions) *cobra.Command {
	opts := &AnonymizeOptions{}

	cmd := &cobra.Command{
		Use:   "anonymize",
		Short: "Anonymize a tabular dataset",
		Long: `Anonymize a CSV or JSON dataset with k-anonymity, l-diversity or
differential privacy. Column types come from the metadata file and column
roles from the roles file; columns without a role follow the unassigned
column policy.`,
		Example: `  # k-anonymity with groups of at least 4
  anonimadata anonymize --input patients.csv --metadata meta.json --roles roles.json \
    --method k_anonymity --param k=4 --output anonymized.csv

  # Differential privacy with a fixed seed, JSON output on stdout
  anonimadata anonymize -i data.csv -m meta.yaml --method differential_privacy \
    --param epsilon=0.5 --seed 42 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnonymize(cmd.Context(), global, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input dataset, csv or json, optionally gzipped (required)")
	cmd.Flags().StringVarP(&opts.MetadataFile, "metadata", "m", "", "Column metadata file (json or yaml)")
	cmd.Flags().StringVarP(&opts.RolesFile, "roles", "r", "", "Column role assignments file (json or yaml)")
	cmd.Flags().StringVar(&opts.Method, "method", "", "Anonymization method (default from config)")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "Method parameter as key=value, repeatable")
	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "-", "Output file (- for stdout)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format (csv, json); inferred from the output file when empty")
	cmd.Flags().StringVar(&opts.ReportFile, "report", "", "Write the anonymization report as JSON to this file")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "Seed for reproducible noise (0 uses the config value)")
	cmd.Flags().StringVar(&opts.UnassignedPolicy, "unassigned-policy", "", "Role of columns without an assignment (heuristic, preserve, anonymize)")
	cmd.Flags().StringVar(&opts.Delimiter, "delimiter", "", "CSV delimiter for input and output")
	cmd.Flags().IntVar(&opts.Precision, "precision", -1, "Decimal places for float output (-1 keeps full precision)")
	cmd.Flags().BoolVar(&opts.Compress, "compress", false, "Gzip the output file")

	cmd.MarkFlagRequired("input")

	return cmd
}

func runAnonymize(ctx context.Context, global *GlobalOptions, opts *AnonymizeOptions, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	settings := global.settings()
	logger := global.log()

	method := opts.Method
	if method == "" {
		method = settings.DefaultMethod
	}
	params, err := parseParams(opts.Params)
	if err != nil {
		return err
	}

	// Reject bad parameters before reading any data
	if _, err := privacy.ValidateParameters(method, params); err != nil {
		return err
	}

	engine := export.NewExportEngine(logger)
	format, err := engine.ParseFormat(outputFormat(opts, settings.DefaultFormat))
	if err != nil {
		return err
	}

	storage, err := global.fileStorage(opts.Delimiter, opts.Compress)
	if err != nil {
		return err
	}

	var metadata models.Metadata
	if opts.MetadataFile != "" {
		metadata, err = storage.LoadMetadata(ctx, opts.MetadataFile)
		if err != nil {
			return fmt.Errorf("failed to load metadata: %w", err)
		}
	}

	roles, err := loadOptionalRoles(ctx, storage, opts.RolesFile)
	if err != nil {
		return fmt.Errorf("failed to load roles: %w", err)
	}

	dataset, err := storage.LoadDatasetWithMetadata(ctx, opts.InputFile, metadata)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	engineConfig := settings.EngineConfig()
	if opts.Seed != 0 {
		seed := opts.Seed
		engineConfig.Seed = &seed
	}
	if opts.UnassignedPolicy != "" {
		policy, err := privacy.ParseUnassignedPolicy(opts.UnassignedPolicy)
		if err != nil {
			return err
		}
		engineConfig.UnassignedPolicy = policy
	}

	result, err := privacy.NewAnonymizer(engineConfig, logger).Anonymize(ctx, &privacy.Request{
		Dataset:  dataset,
		Metadata: metadata,
		Roles:    roles,
		Method:   method,
		Params:   params,
	})
	if err != nil {
		return err
	}

	exportOptions := export.DefaultExportOptions()
	exportOptions.Precision = opts.Precision
	if opts.Delimiter != "" {
		exportOptions.CSVOptions.Delimiter = opts.Delimiter
	}
	writer, err := engine.Writer(format, exportOptions)
	if err != nil {
		return err
	}

	if opts.OutputFile == "" || opts.OutputFile == "-" {
		if err := writer.Write(ctx, stdout, result.Dataset); err != nil {
			return err
		}
	} else {
		if err := storage.SaveDataset(ctx, opts.OutputFile, result.Dataset, writer); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if opts.ReportFile != "" {
		if err := writeReport(opts.ReportFile, result); err != nil {
			return err
		}
	}

	printSummary(stderr, result)
	return nil
}

// outputFormat picks the explicit format, then the output extension, then the
// configured default
func outputFormat(opts *AnonymizeOptions, fallback string) string {
	if opts.Format != "" {
		return opts.Format
	}
	if opts.OutputFile != "" && opts.OutputFile != "-" {
		if format := constants.FormatFromPath(opts.OutputFile); format != "" {
			return format
		}
	}
	return fallback
}

type anonymizationReport struct {
	Method      privacy.Method         `json:"method"`
	Parameters  map[string]interface{} `json:"parameters"`
	Roles       *privacy.ColumnRoles   `json:"roles"`
	Rows        int                    `json:"rows"`
	Report      *privacy.Report        `json:"report"`
	Diagnostics []privacy.Diagnostic   `json:"diagnostics,omitempty"`
}

func writeReport(path string, result *privacy.Result) error {
	data, err := json.MarshalIndent(&anonymizationReport{
		Method:      result.Method,
		Parameters:  result.Parameters.AsMap(),
		Roles:       result.Roles,
		Rows:        result.Dataset.Len(),
		Report:      result.Report,
		Diagnostics: result.Diagnostics,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, result *privacy.Result) {
	values := result.Parameters.AsMap()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make([]string, 0, len(keys))
	for _, k := range keys {
		params = append(params, fmt.Sprintf("%s=%v", k, values[k]))
	}

	printSuccess(w, "Anonymized %d rows with %s (%s)", result.Dataset.Len(), result.Method, strings.Join(params, ", "))

	if s := result.Report.Suppression; s != nil {
		fmt.Fprintf(w, "  quasi-identifiers: %s\n", strings.Join(s.QuasiIdentifiers, ", "))
		fmt.Fprintf(w, "  equivalence classes: %d, suppressed: %d rows in %d classes\n", s.Classes, s.SuppressedRows, s.ViolatingClasses)
	}
	for _, d := range result.Report.Diversity {
		if d.Skipped {
			continue
		}
		fmt.Fprintf(w, "  l-diversity on %s: %d rows suppressed in %d classes\n", d.SensitiveAttribute, d.SuppressedRows, d.ViolatingClasses)
	}
	for _, d := range result.Diagnostics {
		if d.Level == privacy.DiagnosticInfo {
			continue
		}
		if d.Column != "" {
			printWarning(w, "%s: %s (%s)", d.Stage, d.Message, d.Column)
		} else {
			printWarning(w, "%s: %s", d.Stage, d.Message)
		}
	}
}
