package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/IacopoSb/AnonimaData/internal/privacy"
)

func NewMethodsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "methods",
		Short: "List anonymization methods and their parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return printSchemasJSON(cmd.OutOrStdout())
			}
			return printSchemas(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the schema table as JSON")

	return cmd
}

func printSchemasJSON(out io.Writer) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(privacy.Schemas())
}

func printSchemas(out io.Writer) error {
	for i, schema := range privacy.Schemas() {
		if i > 0 {
			fmt.Fprintln(out)
		}
		printBold(out, "%s", schema.Method)
		fmt.Fprintf(out, "  %s\n", schema.Description)

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  PARAMETER\tTYPE\tDEFAULT\tRANGE\tDESCRIPTION")
		for _, p := range schema.Parameters {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", p.Name, p.Type, formatBound(p.Default), parameterRange(p), p.Description)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func parameterRange(p privacy.ParameterSpec) string {
	lower := "[" + formatBound(p.Min)
	if p.MinExclusive {
		lower = "(" + formatBound(p.Min)
	}
	if !p.HasMax {
		return lower + ", inf)"
	}
	return lower + ", " + formatBound(p.Max) + "]"
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
