package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IacopoSb/AnonimaData/cmd/cli/config"
	"github.com/IacopoSb/AnonimaData/internal/export"
	"github.com/IacopoSb/AnonimaData/internal/privacy"
	"github.com/IacopoSb/AnonimaData/internal/storage/implementations/file"
	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/errors"
	"github.com/IacopoSb/AnonimaData/tests/helpers"
)

const (
	zipMetadataJSON = `[
		{"column_name": "zip", "data_type": "categorical"},
		{"column_name": "age", "data_type": "numeric"},
		{"column_name": "disease", "data_type": "categorical"},
		{"column_name": "email", "data_type": "email"}
	]`
	zipRolesJSON = `[
		{"column_name": "zip", "is_quasi_identifier": true, "should_anonymize": true},
		{"column_name": "age"},
		{"column_name": "disease", "should_anonymize": true},
		{"column_name": "email", "should_anonymize": true}
	]`
)

func testGlobal(t *testing.T) *GlobalOptions {
	return &GlobalOptions{
		Config: config.DefaultConfig(),
		Logger: helpers.GetTestLogger(t),
	}
}

// writeZipFixtures writes the zip dataset as CSV together with its metadata
// and role files
func writeZipFixtures(t *testing.T, dir string) (input, metadata, roles string) {
	ds, _ := helpers.ZipDataset()

	storage, err := file.NewFileStorage(&file.FileStorageConfig{BasePath: dir, Delimiter: ","}, helpers.GetTestLogger(t))
	require.NoError(t, err)
	writer, err := export.NewExportEngine(nil).Writer(export.FormatCSV, export.DefaultExportOptions())
	require.NoError(t, err)
	require.NoError(t, storage.SaveDataset(context.Background(), "patients.csv", ds, writer))

	metadata = filepath.Join(dir, "meta.json")
	require.NoError(t, os.WriteFile(metadata, []byte(zipMetadataJSON), 0644))
	roles = filepath.Join(dir, "roles.json")
	require.NoError(t, os.WriteFile(roles, []byte(zipRolesJSON), 0644))

	return filepath.Join(dir, "patients.csv"), metadata, roles
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"k=4", " L = 2 ", "epsilon=0.5"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"k": "4", "l": "2", "epsilon": "0.5"}, params)

	_, err = parseParams([]string{"k"})
	assert.Error(t, err)

	_, err = parseParams([]string{"=4"})
	assert.Error(t, err)
}

func TestOutputFormat(t *testing.T) {
	assert.Equal(t, "json", outputFormat(&AnonymizeOptions{Format: "json", OutputFile: "out.csv"}, "csv"))
	assert.Equal(t, "json", outputFormat(&AnonymizeOptions{OutputFile: "out.json.gz"}, "csv"))
	assert.Equal(t, "csv", outputFormat(&AnonymizeOptions{OutputFile: "-"}, "csv"))
	assert.Equal(t, "csv", outputFormat(&AnonymizeOptions{OutputFile: "out.txt"}, "csv"))
}

func TestRunAnonymizeKAnonymity(t *testing.T) {
	dir := helpers.NewTestCleanup(t).CreateTempDir("cli-anonymize")
	input, metadata, roles := writeZipFixtures(t, dir)
	output := filepath.Join(dir, "out", "anonymized.csv")
	report := filepath.Join(dir, "report.json")

	var stdout, stderr bytes.Buffer
	err := runAnonymize(context.Background(), testGlobal(t), &AnonymizeOptions{
		InputFile:    input,
		MetadataFile: metadata,
		RolesFile:    roles,
		Method:       "k_anonymity",
		Params:       []string{"k=4"},
		OutputFile:   output,
		ReportFile:   report,
		Precision:    -1,
	}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Anonymized 10 rows with k_anonymity (k=4)")
	assert.Contains(t, stderr.String(), "suppressed: 6 rows in 2 classes")

	storage, err := file.NewFileStorage(nil, helpers.GetTestLogger(t))
	require.NoError(t, err)
	_, zipMetadata := helpers.ZipDataset()
	anonymized, err := storage.LoadDatasetWithMetadata(context.Background(), output, zipMetadata)
	require.NoError(t, err)

	require.Equal(t, 10, anonymized.Len())
	assert.Equal(t, "10001", anonymized.Rows[0]["zip"])
	assert.Equal(t, constants.SuppressedMarker, anonymized.Rows[9]["zip"])
	assert.Empty(t, privacy.VerifyKAnonymity(anonymized, []string{"zip"}, 4))

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "k_anonymity", decoded["method"])
	assert.Equal(t, 10.0, decoded["rows"])
	assert.NotNil(t, decoded["report"].(map[string]interface{})["suppression"])
}

func TestRunAnonymizeToStdoutAsJSON(t *testing.T) {
	dir := helpers.NewTestCleanup(t).CreateTempDir("cli-anonymize")
	input, metadata, roles := writeZipFixtures(t, dir)

	var stdout, stderr bytes.Buffer
	err := runAnonymize(context.Background(), testGlobal(t), &AnonymizeOptions{
		InputFile:    input,
		MetadataFile: metadata,
		RolesFile:    roles,
		Method:       "differential_privacy",
		Params:       []string{"epsilon=1"},
		OutputFile:   "-",
		Format:       "json",
		Seed:         42,
		Precision:    -1,
	}, &stdout, &stderr)
	require.NoError(t, err)

	var decoded struct {
		Columns []string                 `json:"columns"`
		Rows    []map[string]interface{} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	assert.Equal(t, []string{"zip", "age", "disease", "email"}, decoded.Columns)
	assert.Len(t, decoded.Rows, 10)
}

func TestRunAnonymizeValidatesBeforeReading(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := runAnonymize(context.Background(), testGlobal(t), &AnonymizeOptions{
		InputFile:  "does-not-exist.csv",
		Method:     "l_diversity",
		Params:     []string{"k=2", "l=5"},
		OutputFile: "-",
	}, &stdout, &stderr)

	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidParameter, errors.CodeOf(err))

	err = runAnonymize(context.Background(), testGlobal(t), &AnonymizeOptions{
		InputFile:  "does-not-exist.csv",
		Method:     "t_closeness",
		OutputFile: "-",
	}, &stdout, &stderr)
	assert.ErrorIs(t, err, errors.ErrUnknownMethod)
}

func TestRunValidate(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runValidate(context.Background(), testGlobal(t), &ValidateOptions{
		Method: "l-diversity",
		Params: []string{"k=4", "l=2"},
	}, &out))
	assert.Contains(t, out.String(), "l_diversity parameters are valid: k=4, l=2")

	out.Reset()
	err := runValidate(context.Background(), testGlobal(t), &ValidateOptions{
		Method: "l_diversity",
		Params: []string{"k=2", "l=5"},
	}, &out)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidParameter, errors.CodeOf(err))
	assert.Contains(t, out.String(), "✗")
}

func TestRunValidateResolvesRoles(t *testing.T) {
	dir := helpers.NewTestCleanup(t).CreateTempDir("cli-validate")
	_, metadata, roles := writeZipFixtures(t, dir)

	var out bytes.Buffer
	require.NoError(t, runValidate(context.Background(), testGlobal(t), &ValidateOptions{
		Method:       "k_anonymity",
		MetadataFile: metadata,
		RolesFile:    roles,
	}, &out))

	assert.Contains(t, out.String(), "k_anonymity parameters are valid: k=3")
	assert.Contains(t, out.String(), "metadata describes 4 columns")
	assert.Contains(t, out.String(), "quasi-identifiers: zip")
	assert.Contains(t, out.String(), "sensitive:         zip, disease, email")
	assert.Contains(t, out.String(), "preserved:         age")

	err := runValidate(context.Background(), testGlobal(t), &ValidateOptions{
		Method:    "k_anonymity",
		RolesFile: roles,
	}, &out)
	assert.Error(t, err)
}

func TestRunVerify(t *testing.T) {
	dir := helpers.NewTestCleanup(t).CreateTempDir("cli-verify")
	input, metadata, roles := writeZipFixtures(t, dir)

	var out bytes.Buffer
	err := runVerify(context.Background(), testGlobal(t), &VerifyOptions{
		InputFile:        input,
		MetadataFile:     metadata,
		QuasiIdentifiers: []string{"zip"},
		K:                4,
		ShowClasses:      1,
	}, &out)
	require.Error(t, err)
	assert.Contains(t, out.String(), "not 4-anonymous: 2 equivalence classes are too small")
	assert.Contains(t, out.String(), "... and 1 more")

	output := filepath.Join(dir, "anonymized.csv")
	require.NoError(t, runAnonymize(context.Background(), testGlobal(t), &AnonymizeOptions{
		InputFile:    input,
		MetadataFile: metadata,
		RolesFile:    roles,
		Method:       "l_diversity",
		Params:       []string{"k=3", "l=2"},
		OutputFile:   output,
		Precision:    -1,
	}, &bytes.Buffer{}, &bytes.Buffer{}))

	out.Reset()
	require.NoError(t, runVerify(context.Background(), testGlobal(t), &VerifyOptions{
		InputFile:        output,
		MetadataFile:     metadata,
		QuasiIdentifiers: []string{"zip"},
		Sensitive:        []string{"disease"},
		K:                3,
		L:                2,
		ShowClasses:      5,
	}, &out))
	assert.Contains(t, out.String(), "3-anonymous over zip")
	assert.Contains(t, out.String(), "2-diverse on disease")

	err = runVerify(context.Background(), testGlobal(t), &VerifyOptions{
		InputFile:        output,
		QuasiIdentifiers: []string{"postcode"},
		K:                3,
	}, &out)
	assert.ErrorIs(t, err, errors.ErrMissingColumn)
}

func TestMethodsCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := NewMethodsCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "k_anonymity")
	assert.Contains(t, out.String(), "differential_privacy")
	assert.Contains(t, out.String(), "(0, 10]")
	assert.Contains(t, out.String(), "[2, inf)")

	out.Reset()
	cmd = NewMethodsCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--json"})
	require.NoError(t, cmd.Execute())

	var schemas []privacy.MethodSchema
	require.NoError(t, json.Unmarshal(out.Bytes(), &schemas))
	assert.Len(t, schemas, 3)
}
