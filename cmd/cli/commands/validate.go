package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IacopoSb/AnonimaData/internal/privacy"
)

type ValidateOptions struct {
	Method           string
	Params           []string
	MetadataFile     string
	RolesFile        string
	UnassignedPolicy string
}

func NewValidateCmd(global *GlobalOptions) *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a method, its parameters and column descriptions",
		Long: `Validate an anonymization method and its parameters against the
parameter schema without reading any data. When metadata and role files are
given they are parsed and the resolved column roles are printed.`,
		Example: `  # Check a parameter set
  anonimadata validate --method l_diversity --param k=2 --param l=5

  # Also resolve column roles
  anonimadata validate --method k_anonymity --param k=4 --metadata meta.json --roles roles.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), global, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Method, "method", "", "Anonymization method (default from config)")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "Method parameter as key=value, repeatable")
	cmd.Flags().StringVarP(&opts.MetadataFile, "metadata", "m", "", "Column metadata file (json or yaml)")
	cmd.Flags().StringVarP(&opts.RolesFile, "roles", "r", "", "Column role assignments file (json or yaml)")
	cmd.Flags().StringVar(&opts.UnassignedPolicy, "unassigned-policy", "", "Role of columns without an assignment")

	return cmd
}

func runValidate(ctx context.Context, global *GlobalOptions, opts *ValidateOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	method := opts.Method
	if method == "" {
		method = global.settings().DefaultMethod
	}
	params, err := parseParams(opts.Params)
	if err != nil {
		return err
	}

	validated, err := privacy.ValidateParameters(method, params)
	if err != nil {
		printFailure(out, "%v", err)
		return err
	}

	values := validated.AsMap()
	pairs := make([]string, 0, len(values))
	for _, name := range schemaParameters(validated.Method) {
		pairs = append(pairs, fmt.Sprintf("%s=%v", name, values[name]))
	}
	printSuccess(out, "%s parameters are valid: %s", validated.Method, strings.Join(pairs, ", "))

	if opts.MetadataFile == "" {
		if opts.RolesFile != "" {
			return fmt.Errorf("--roles requires --metadata")
		}
		return nil
	}

	storage, err := global.fileStorage("", false)
	if err != nil {
		return err
	}

	metadata, err := storage.LoadMetadata(ctx, opts.MetadataFile)
	if err != nil {
		printFailure(out, "metadata: %v", err)
		return err
	}
	printSuccess(out, "metadata describes %d columns", len(metadata))

	assignments, err := loadOptionalRoles(ctx, storage, opts.RolesFile)
	if err != nil {
		printFailure(out, "roles: %v", err)
		return err
	}

	policyName := opts.UnassignedPolicy
	if policyName == "" {
		policyName = global.settings().UnassignedPolicy
	}
	policy, err := privacy.ParseUnassignedPolicy(policyName)
	if err != nil {
		return err
	}

	resolved, diags := privacy.ResolveRoles(metadata, assignments, policy)
	fmt.Fprintf(out, "  quasi-identifiers: %s\n", joinOrNone(resolved.QuasiIdentifiers))
	fmt.Fprintf(out, "  sensitive:         %s\n", joinOrNone(resolved.Sensitive))
	fmt.Fprintf(out, "  preserved:         %s\n", joinOrNone(resolved.Preserved))
	for _, d := range diags {
		if d.Level != privacy.DiagnosticInfo {
			printWarning(out, "%s", d.Message)
		}
	}
	return nil
}

func schemaParameters(method privacy.Method) []string {
	for _, schema := range privacy.Schemas() {
		if schema.Method != method {
			continue
		}
		names := make([]string, 0, len(schema.Parameters))
		for _, p := range schema.Parameters {
			names = append(names, p.Name)
		}
		return names
	}
	return nil
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}
