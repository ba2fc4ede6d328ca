package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IacopoSb/AnonimaData/internal/export"
	"github.com/IacopoSb/AnonimaData/pkg/errors"
	"github.com/IacopoSb/AnonimaData/pkg/models"
	"github.com/IacopoSb/AnonimaData/tests/helpers"
)

func newTestStorage(t *testing.T, dir string) *FileStorage {
	fs, err := NewFileStorage(&FileStorageConfig{
		BasePath:   dir,
		Delimiter:  ",",
		InferTypes: true,
		CreateDirs: true,
	}, helpers.GetTestLogger(t))
	require.NoError(t, err)
	return fs
}

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewFileStorage(t *testing.T) {
	fs, err := NewFileStorage(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ",", fs.config.Delimiter)
	assert.True(t, fs.config.InferTypes)

	_, err = NewFileStorage(&FileStorageConfig{Delimiter: ";;"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.CodeOf(err))
}

func TestLoadCSVInfersTypes(t *testing.T) {
	dir := helpers.NewTestCleanup(t).CreateTempDir("file-storage")
	writeFile(t, dir, "people.csv", "\xef\xbb\xbfzip, age,score,code,name\n"+
		"10001,34,1.5,007,Ada\n"+
		"10002,,2,010,\"Lovelace, A\"\n")

	ds, err := newTestStorage(t, dir).LoadDataset(context.Background(), "people.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"zip", "age", "score", "code", "name"}, ds.Columns)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, int64(10001), ds.Rows[0]["zip"])
	assert.Equal(t, int64(34), ds.Rows[0]["age"])
	assert.Equal(t, 1.5, ds.Rows[0]["score"])
	assert.Equal(t, "007", ds.Rows[0]["code"], "zero-padded codes stay text")
	assert.Nil(t, ds.Rows[1]["age"])
	assert.Equal(t, "Lovelace, A", ds.Rows[1]["name"])
}

func TestLoadCSVWithMetadata(t *testing.T) {
	dir := helpers.NewTestCleanup(t).CreateTempDir("file-storage")
	writeFile(t, dir, "zip.csv", "zip,age,note\n10001,34,12\n10002,x,7\n")

	metadata := models.Metadata{
		{Name: "zip", SemanticType: models.TypeCategorical},
		{Name: "age", SemanticType: models.TypeNumeric},
	}

	ds, err := newTestStorage(t, dir).LoadDatasetWithMetadata(context.Background(), "zip.csv", metadata)
	require.NoError(t, err)

	assert.Equal(t, "10001", ds.Rows[0]["zip"], "described non-numeric columns stay text")
	assert.Equal(t, int64(34), ds.Rows[0]["age"])
	assert.Equal(t, "x", ds.Rows[1]["age"], "unparseable numbers are kept")
	assert.Equal(t, int64(12), ds.Rows[0]["note"], "undescribed columns are inferred")
}

func TestLoadJSONDatasets(t *testing.T) {
	dir := helpers.NewTestCleanup(t).CreateTempDir("file-storage")
	fs := newTestStorage(t, dir)

	writeFile(t, dir, "table.json", `{"columns": ["b", "a"], "rows": [{"a": 1, "b": "x"}, {"a": 2.5, "b": null}]}`)
	ds, err := fs.LoadDataset(context.Background(), "table.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ds.Columns)
	assert.Equal(t, int64(1), ds.Rows[0]["a"])
	assert.Equal(t, 2.5, ds.Rows[1]["a"])
	assert.Nil(t, ds.Rows[1]["b"])

	writeFile(t, dir, "records.json", `[{"zip": "10001", "age": 34}, {"age": 45, "city": "Rome"}]`)
	ds, err = fs.LoadDataset(context.Background(), "records.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"zip", "age", "city"}, ds.Columns)
	assert.Nil(t, ds.Rows[0]["city"])
	assert.Nil(t, ds.Rows[1]["zip"])
	assert.Equal(t, int64(45), ds.Rows[1]["age"])
}

func TestLoadDatasetErrors(t *testing.T) {
	dir := helpers.NewTestCleanup(t).CreateTempDir("file-storage")
	fs := newTestStorage(t, dir)
	ctx := context.Background()

	_, err := fs.LoadDataset(ctx, "missing.csv")
	assert.Equal(t, errors.CodeDataNotFound, errors.CodeOf(err))

	writeFile(t, dir, "data.xlsx", "")
	_, err = fs.LoadDataset(ctx, "data.xlsx")
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))

	writeFile(t, dir, "ragged.csv", "a,b\n1\n")
	_, err = fs.LoadDataset(ctx, "ragged.csv")
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))

	writeFile(t, dir, "dup.csv", "a,a\n1,2\n")
	_, err = fs.LoadDataset(ctx, "dup.csv")
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))

	writeFile(t, dir, "empty.csv", "")
	_, err = fs.LoadDataset(ctx, "empty.csv")
	assert.Error(t, err)

	limited, err := NewFileStorage(&FileStorageConfig{BasePath: dir, MaxRows: 1}, nil)
	require.NoError(t, err)
	writeFile(t, dir, "two.csv", "a\n1\n2\n")
	_, err = limited.LoadDataset(ctx, "two.csv")
	assert.Error(t, err)
}

func TestLoadMetadataFormats(t *testing.T) {
	dir := helpers.NewTestCleanup(t).CreateTempDir("file-storage")
	fs := newTestStorage(t, dir)
	ctx := context.Background()

	expected := models.Metadata{
		{Name: "zip", SemanticType: models.TypeCategorical},
		{Name: "age", SemanticType: models.TypeNumeric},
		{Name: "mail", SemanticType: models.TypeEmail},
	}

	writeFile(t, dir, "list.json", `[
		{"column_name": "zip", "data_type": "categorical"},
		{"column_name": "age", "data_type": "integer"},
		{"column_name": "mail", "data_type": "email"}
	]`)
	writeFile(t, dir, "map.json", `{"zip": "categorical", "age": "float", "mail": "email"}`)
	writeFile(t, dir, "list.yaml", "- column_name: zip\n  data_type: categorical\n- column_name: age\n  data_type: integer\n- column_name: mail\n  data_type: email\n")
	writeFile(t, dir, "map.yml", "zip: categorical\nage: numeric\nmail: email\n")

	for _, name := range []string{"list.json", "map.json", "list.yaml", "map.yml"} {
		metadata, err := fs.LoadMetadata(ctx, name)
		require.NoError(t, err, name)
		assert.Equal(t, expected, metadata, name)
	}
}

func TestLoadMetadataValidation(t *testing.T) {
	dir := helpers.NewTestCleanup(t).CreateTempDir("file-storage")
	fs := newTestStorage(t, dir)
	ctx := context.Background()

	writeFile(t, dir, "dup.json", `[{"column_name": "a", "data_type": "text"}, {"column_name": "a", "data_type": "text"}]`)
	_, err := fs.LoadMetadata(ctx, "dup.json")
	var ve *errors.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 1)

	writeFile(t, dir, "bad.json", `"nope"`)
	_, err = fs.LoadMetadata(ctx, "bad.json")
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))
}

func TestLoadRoles(t *testing.T) {
	dir := helpers.NewTestCleanup(t).CreateTempDir("file-storage")
	fs := newTestStorage(t, dir)
	ctx := context.Background()

	writeFile(t, dir, "roles.json", `[
		{"column_name": "zip", "is_quasi_identifier": true},
		{"column_name": "disease", "should_anonymize": true}
	]`)
	roles, err := fs.LoadRoles(ctx, "roles.json")
	require.NoError(t, err)
	assert.Equal(t, []models.RoleAssignment{
		{ColumnName: "zip", IsQuasiIdentifier: true},
		{ColumnName: "disease", ShouldAnonymize: true},
	}, roles)

	writeFile(t, dir, "roles.yaml", "- column_name: zip\n  is_quasi_identifier: true\n")
	roles, err = fs.LoadRoles(ctx, "roles.yaml")
	require.NoError(t, err)
	assert.Equal(t, []models.RoleAssignment{{ColumnName: "zip", IsQuasiIdentifier: true}}, roles)

	writeFile(t, dir, "nameless.json", `[{"is_quasi_identifier": true}]`)
	_, err = fs.LoadRoles(ctx, "nameless.json")
	var ve *errors.ValidationErrors
	assert.ErrorAs(t, err, &ve)
}

func TestSaveAndReloadDataset(t *testing.T) {
	dir := helpers.NewTestCleanup(t).CreateTempDir("file-storage")
	fs := newTestStorage(t, dir)
	ctx := context.Background()

	ds, _ := helpers.ZipDataset()
	engine := export.NewExportEngine(helpers.GetTestLogger(t))

	for _, name := range []string{"out/zip.csv", "out/zip.json", "out/zip.csv.gz"} {
		format := export.FormatCSV
		if filepath.Ext(name) == ".json" {
			format = export.FormatJSON
		}
		writer, err := engine.Writer(format, export.DefaultExportOptions())
		require.NoError(t, err)

		require.NoError(t, fs.SaveDataset(ctx, name, ds, writer), name)

		reloaded, err := fs.LoadDataset(ctx, name)
		require.NoError(t, err, name)
		assert.Equal(t, ds.Columns, reloaded.Columns, name)
		assert.Equal(t, ds.Len(), reloaded.Len(), name)
		assert.Equal(t, "flu", reloaded.Rows[0]["disease"], name)
	}
}

func TestSaveDatasetCompressOption(t *testing.T) {
	dir := helpers.NewTestCleanup(t).CreateTempDir("file-storage")
	fs, err := NewFileStorage(&FileStorageConfig{BasePath: dir, Compress: true, InferTypes: true}, helpers.GetTestLogger(t))
	require.NoError(t, err)

	writer, err := export.NewExportEngine(nil).Writer(export.FormatCSV, export.DefaultExportOptions())
	require.NoError(t, err)

	ds := helpers.BuildDataset([]string{"a"}, []interface{}{1})
	require.NoError(t, fs.SaveDataset(context.Background(), "plain.csv", ds, writer))

	_, err = os.Stat(filepath.Join(dir, "plain.csv.gz"))
	require.NoError(t, err)

	reloaded, err := fs.LoadDataset(context.Background(), "plain.csv.gz")
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.Rows[0]["a"])
}

func TestInferNumber(t *testing.T) {
	tests := []struct {
		in       string
		expected interface{}
		ok       bool
	}{
		{"42", int64(42), true},
		{"-3.5", -3.5, true},
		{"0", int64(0), true},
		{"0.25", 0.25, true},
		{"1e3", 1000.0, true},
		{"00123", nil, false},
		{"NaN", nil, false},
		{"Inf", nil, false},
		{"abc", nil, false},
	}

	for _, tt := range tests {
		v, ok := inferNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.expected, v, tt.in)
	}
}
