package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/uidpulse/internal/analytics"
	"github.com/KaramelBytes/uidpulse/internal/pipeline"
)

// resetFlags puts every flag in the command tree back to its default so state
// from one invocation does not leak into the next.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args and returns stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, args...)
	require.NoError(t, err, "command %v", args)
	return out
}

// setup isolates HOME and writes a small data folder. It returns the data root.
func setup(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("UIDPULSE_LOG_LEVEL", "error")

	root := filepath.Join(home, "data")
	files := map[string]string{
		"api_data_aadhar_enrolment/part1.csv": "date,state,district,pincode,age_0_5,age_5_17,age_18_greater\n" +
			"15-01-2024,goa,north goa,403001,100,50,10\n" +
			"15-02-2024,goa,north goa,403001,120,60,15\n" +
			"15-03-2024,goa,north goa,403001,140,70,20\n",
		"api_data_aadhar_enrolment/part2.csv": "date,state,district,pincode,age_0_5,age_5_17,age_18_greater\n" +
			"10-01-2024,kerala,idukki,685501,1500,0,0\n",
		"api_data_aadhar_biometric/bio.csv": "date,state,district,pincode,bio_age_5_17,bio_age_17_\n" +
			"20-01-2024,kerala,idukki,685501,600,0\n",
	}
	for name, body := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func TestCLI_KPIsJSON(t *testing.T) {
	data := setup(t)

	var k analytics.KPIs
	out := mustRun(t, "kpis", "--data-dir", data, "-f", "json")
	require.NoError(t, json.Unmarshal([]byte(out), &k), out)
	assert.Equal(t, int64(2085), k.TotalEnrolments)
	assert.Equal(t, int64(600), k.TotalBiometricUpdates)

	out = mustRun(t, "kpis", "--data-dir", data, "-f", "json", "--region", "goa")
	require.NoError(t, json.Unmarshal([]byte(out), &k), out)
	assert.Equal(t, int64(585), k.TotalEnrolments)
}

func TestCLI_RecommendAndTables(t *testing.T) {
	data := setup(t)

	var recs []analytics.Recommendation
	out := mustRun(t, "recommend", "--data-dir", data, "-f", "json")
	require.NoError(t, json.Unmarshal([]byte(out), &recs), out)
	require.Len(t, recs, 2)
	assert.Equal(t, analytics.ActionMobileEnrolment, recs[0].Action)
	assert.Equal(t, analytics.ActionBiometricCamp, recs[1].Action)

	out = mustRun(t, "summary", "enrolment", "--data-dir", data, "--level", "district", "-f", "markdown")
	assert.Contains(t, out, "North Goa")
	assert.Contains(t, out, "Idukki")

	out = mustRun(t, "forecast", "enr", "--data-dir", data, "--region", "goa", "--periods", "2", "-f", "csv")
	assert.GreaterOrEqual(t, strings.Count(out, "\n"), 5)
}

func TestCLI_BadArguments(t *testing.T) {
	data := setup(t)

	_, err := runCmd(t, "summary", "census", "--data-dir", data)
	assert.Error(t, err)

	_, err = runCmd(t, "trend", "bio", "--data-dir", data, "--freq", "M")
	assert.Error(t, err)

	_, err = runCmd(t, "kpis", "--data-dir", data, "-f", "pdf")
	assert.Error(t, err)

	_, err = runCmd(t, "kpis", "--data-dir", data, "-f", "xlsx")
	assert.ErrorContains(t, err, "--out")
}

func TestCLI_NarrateWithoutProvider(t *testing.T) {
	data := setup(t)

	out := mustRun(t, "narrate", "kpis", "--data-dir", data)
	assert.Contains(t, out, "narrative unavailable")
}

func TestCLI_Export(t *testing.T) {
	data := setup(t)
	dir := filepath.Join(t.TempDir(), "export")

	out := mustRun(t, "export", "--data-dir", data, "--out-dir", dir)
	assert.Contains(t, out, "Exported 3 slices")

	raw, err := os.ReadFile(filepath.Join(dir, pipeline.ManifestFile))
	require.NoError(t, err)
	var man pipeline.Manifest
	require.NoError(t, json.Unmarshal(raw, &man))
	assert.Len(t, man.Slices, 3)
	assert.Zero(t, man.Failed)
	assert.NotEmpty(t, man.RunID)

	// Only the named state plus All.
	dir2 := filepath.Join(t.TempDir(), "export")
	out = mustRun(t, "export", "--data-dir", data, "--out-dir", dir2, "--states", "Kerala", "-f", "json")
	assert.Contains(t, out, "Exported 2 slices")
}

func TestCLI_ConfigSetShow(t *testing.T) {
	setup(t)

	mustRun(t, "config", "set", "forecast_periods", "3")
	mustRun(t, "config", "set", "api_key", "sk-or-secret-123456")

	_, err := os.Stat(filepath.Join(os.Getenv("HOME"), ".uidpulse", "config.yaml"))
	require.NoError(t, err)

	out := mustRun(t, "config", "show")
	assert.Contains(t, out, "forecast_periods: 3")
	assert.Contains(t, out, "api_key:")
	assert.NotContains(t, out, "sk-or-secret-123456")

	_, err = runCmd(t, "config", "set", "resample_frequency", "M")
	assert.Error(t, err)
	_, err = runCmd(t, "config", "set", "no_such_key", "1")
	assert.Error(t, err)
}
