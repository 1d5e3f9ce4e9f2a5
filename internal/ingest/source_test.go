package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/uidpulse/internal/dataset"
	"github.com/KaramelBytes/uidpulse/internal/ingest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeXLSX(t *testing.T, path string, rows [][]any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestReadCSVCanonicalizesHeader(t *testing.T) {
	in := "Date, State ,District,pincode,AGE_0_5,age_5_17,age_18_greater\n" +
		"15-01-2024,goa,north goa,403001,100,50,10\n" +
		"16-01-2024,goa,south goa\n"
	tbl, err := ingest.ReadCSV(strings.NewReader(in), 0, dataset.Enrolment)
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "state", "district", "pincode", "age_0_5", "age_5_17", "age_18_plus"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "10", tbl.Rows[0]["age_18_plus"])
	assert.Equal(t, "south goa", tbl.Rows[1]["district"])
	_, has := tbl.Rows[1]["age_0_5"]
	assert.False(t, has, "short rows leave trailing cells unset")
}

func TestReadCSVEmpty(t *testing.T) {
	tbl, err := ingest.ReadCSV(strings.NewReader(""), ',', dataset.Enrolment)
	require.NoError(t, err)
	assert.Empty(t, tbl.Columns)
	assert.Empty(t, tbl.Rows)
}

func TestDirSourceConcatenatesCSVAndXLSX(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "api_data_aadhar_biometric")
	writeFile(t, filepath.Join(dir, "a.csv"),
		"date,state,district,pincode,bio_age_5_17,bio_age_17_\n01-03-2025,kerala,idukki,685501,4,6\n")
	writeFile(t, filepath.Join(dir, "broken.csv"), "date,state\n\"unterminated,x\n")
	writeXLSX(t, filepath.Join(dir, "nested", "b.xlsx"), [][]any{
		{"date", "state", "district", "bio_age_5_17", "bio_age_17_"},
		{"02-03-2025", "Kerala", "Idukki", 1, 2},
		{},
	})
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	var attempts int
	src := ingest.NewDirSource(root, nil)
	src.OnFile = func(dataset.Kind, string, int, error) { attempts++ }

	b, err := src.Load(context.Background(), dataset.BiometricUpdate)
	require.NoError(t, err)
	assert.Equal(t, dataset.BiometricUpdate, b.Kind)
	assert.Equal(t, 3, attempts)
	require.Len(t, b.Rows, 2)
	assert.True(t, b.HasColumn("bio_age_18_plus"))
	assert.Equal(t, "2", b.Rows[1]["bio_age_18_plus"])
}

func TestDirSourceMissingFolderIsEmpty(t *testing.T) {
	src := ingest.NewDirSource(t.TempDir(), nil)
	b, err := src.Load(context.Background(), dataset.Enrolment)
	require.NoError(t, err)
	assert.Empty(t, b.Rows)
}

func TestDiscoverNoFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "readme.md"), "x")
	_, err := ingest.Discover(dir)
	assert.ErrorIs(t, err, ingest.ErrNoFiles)
}

func TestMemorySource(t *testing.T) {
	src := ingest.MemorySource{dataset.Enrolment: {Rows: []dataset.RawRow{{"date": "01-01-2024"}}}}
	b, err := src.Load(context.Background(), dataset.Enrolment)
	require.NoError(t, err)
	assert.Equal(t, dataset.Enrolment, b.Kind)
	assert.Len(t, b.Rows, 1)

	empty, err := src.Load(context.Background(), dataset.DemographicUpdate)
	require.NoError(t, err)
	assert.Empty(t, empty.Rows)

	_, err = src.Load(context.Background(), dataset.Kind(9))
	assert.ErrorIs(t, err, dataset.ErrUnknownKind)
}
