package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/IacopoSb/AnonimaData/internal/privacy"
	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/errors"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

type VerifyOptions struct {
	InputFile        string
	MetadataFile     string
	QuasiIdentifiers []string
	Sensitive        []string
	K                int
	L                int
	Delimiter        string
	ShowClasses      int
}

func NewVerifyCmd(global *GlobalOptions) *cobra.Command {
	opts := &VerifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that a dataset satisfies k-anonymity and l-diversity",
		Long: `Group the rows of a dataset by its quasi-identifiers and report every
equivalence class smaller than k, and every class with fewer than l distinct
values of a sensitive attribute. Fully suppressed classes are ignored.`,
		Example: `  # k-anonymity only
  anonimadata verify --input anonymized.csv --qi zip --k 4

  # k-anonymity and l-diversity
  anonimadata verify -i anonymized.csv --qi zip,age --k 3 --sensitive disease --l 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), global, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Dataset to check (required)")
	cmd.Flags().StringVarP(&opts.MetadataFile, "metadata", "m", "", "Column metadata file used to type the input")
	cmd.Flags().StringSliceVar(&opts.QuasiIdentifiers, "qi", nil, "Quasi-identifier columns (required)")
	cmd.Flags().StringSliceVar(&opts.Sensitive, "sensitive", nil, "Sensitive columns checked for l-diversity")
	cmd.Flags().IntVar(&opts.K, "k", constants.DefaultK, "Minimum equivalence class size")
	cmd.Flags().IntVar(&opts.L, "l", constants.DefaultL, "Minimum distinct sensitive values per class")
	cmd.Flags().StringVar(&opts.Delimiter, "delimiter", "", "CSV delimiter")
	cmd.Flags().IntVar(&opts.ShowClasses, "show", 5, "Number of violating classes to list")

	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("qi")

	return cmd
}

func runVerify(ctx context.Context, global *GlobalOptions, opts *VerifyOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.K < 1 {
		return errors.NewInvalidParameterError(constants.ParamK, fmt.Sprintf("must be at least 1, got %d", opts.K))
	}
	if len(opts.Sensitive) > 0 && opts.L < 1 {
		return errors.NewInvalidParameterError(constants.ParamL, fmt.Sprintf("must be at least 1, got %d", opts.L))
	}

	storage, err := global.fileStorage(opts.Delimiter, false)
	if err != nil {
		return err
	}

	var metadata models.Metadata
	if opts.MetadataFile != "" {
		if metadata, err = storage.LoadMetadata(ctx, opts.MetadataFile); err != nil {
			return fmt.Errorf("failed to load metadata: %w", err)
		}
	}

	dataset, err := storage.LoadDatasetWithMetadata(ctx, opts.InputFile, metadata)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	for _, col := range opts.QuasiIdentifiers {
		if !dataset.HasColumn(col) {
			return errors.NewMissingColumnError(col, "quasi-identifier")
		}
	}
	for _, col := range opts.Sensitive {
		if !dataset.HasColumn(col) {
			return errors.NewMissingColumnError(col, "sensitive")
		}
	}

	failed := false

	violations := privacy.VerifyKAnonymity(dataset, opts.QuasiIdentifiers, opts.K)
	if len(violations) == 0 {
		printSuccess(out, "%d-anonymous over %s", opts.K, joinOrNone(opts.QuasiIdentifiers))
	} else {
		failed = true
		printFailure(out, "not %d-anonymous: %d equivalence classes are too small", opts.K, len(violations))
		printClasses(out, violations, opts.ShowClasses)
	}

	for _, attr := range opts.Sensitive {
		violations := privacy.VerifyLDiversity(dataset, opts.QuasiIdentifiers, attr, opts.L)
		if len(violations) == 0 {
			printSuccess(out, "%d-diverse on %s", opts.L, attr)
			continue
		}
		failed = true
		printFailure(out, "not %d-diverse on %s: %d equivalence classes lack distinct values", opts.L, attr, len(violations))
		printClasses(out, violations, opts.ShowClasses)
	}

	if failed {
		return fmt.Errorf("verification failed")
	}
	return nil
}

func printClasses(out io.Writer, classes []*privacy.EquivalenceClass, limit int) {
	for i, class := range classes {
		if i >= limit {
			fmt.Fprintf(out, "  ... and %d more\n", len(classes)-limit)
			return
		}
		fmt.Fprintf(out, "  %s: %d rows\n", class.Identifier, class.Size)
	}
}
