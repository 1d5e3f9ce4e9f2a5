package clean_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/uidpulse/internal/clean"
	"github.com/KaramelBytes/uidpulse/internal/dataset"
)

func enrolmentBatch(rows ...dataset.RawRow) dataset.RawBatch {
	return dataset.RawBatch{
		Kind:    dataset.Enrolment,
		Columns: []string{"date", "state", "district", "pincode", "age_0_5", "age_5_17", "age_18_greater"},
		Rows:    rows,
	}
}

func TestNormalizeRepairsAndDrops(t *testing.T) {
	b := enrolmentBatch(
		dataset.RawRow{"date": "15-01-2024", "state": "  goa ", "district": "NORTH GOA", "pincode": "403001.0",
			"age_0_5": "100", "age_5_17": "50.9", "age_18_greater": "abc"},
		dataset.RawRow{"date": "2024-01-15", "state": "Goa", "district": "North Goa", "age_0_5": "1"},
		dataset.RawRow{"date": "1-2-2024", "state": "", "district": "nan", "age_0_5": "-4", "age_5_17": "", "age_18_greater": "7"},
	)
	recs, rep := clean.Normalize(b)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "Goa", first.State)
	assert.Equal(t, "North Goa", first.District)
	assert.Equal(t, "403001", first.Pincode)
	assert.Equal(t, []int64{100, 50, 0}, first.Values)

	second := recs[1]
	assert.Equal(t, dataset.MissingLabel, second.State)
	assert.Equal(t, dataset.MissingLabel, second.District)
	assert.Equal(t, []int64{-4, 0, 7}, second.Values, "negative values pass through")

	assert.Equal(t, 3, rep.Input)
	assert.Equal(t, 2, rep.Retained)
	assert.Equal(t, 1, rep.DroppedDates)
	assert.Equal(t, 2, rep.CoercedValues)
	assert.Equal(t, 1, rep.NegativeValues)
	assert.Equal(t, 2, rep.PlaceholderLabels)
	assert.Empty(t, rep.MissingColumns)
}

func TestNormalizeEmptyBatch(t *testing.T) {
	recs, rep := clean.Normalize(dataset.RawBatch{Kind: dataset.BiometricUpdate})
	assert.Empty(t, recs)
	assert.Equal(t, 0, rep.Input)
}

func TestNormalizeMissingMeasureColumn(t *testing.T) {
	b := dataset.RawBatch{
		Kind:    dataset.BiometricUpdate,
		Columns: []string{"date", "state", "district", "bio_age_5_17"},
		Rows:    []dataset.RawRow{{"date": "03-03-2025", "state": "kerala", "district": "idukki", "bio_age_5_17": "9"}},
	}
	recs, rep := clean.Normalize(b)
	require.Len(t, recs, 1)
	assert.Equal(t, []int64{9, 0}, recs[0].Values)
	assert.Equal(t, []string{"bio_age_18_plus"}, rep.MissingColumns)
}

// toRaw renders cleaned records back into a raw batch with canonical column names.
func toRaw(k dataset.Kind, recs []dataset.Record) dataset.RawBatch {
	names := k.MeasureNames()
	cols := append([]string{dataset.ColDate, dataset.ColState, dataset.ColDistrict, dataset.ColPincode}, names...)
	b := dataset.RawBatch{Kind: k, Columns: cols}
	for _, r := range recs {
		row := dataset.RawRow{
			dataset.ColDate:     r.Date.Format("02-01-2006"),
			dataset.ColState:    r.State,
			dataset.ColDistrict: r.District,
			dataset.ColPincode:  r.Pincode,
		}
		for i, n := range names {
			row[n] = strconv.FormatInt(r.Values[i], 10)
		}
		b.Rows = append(b.Rows, row)
	}
	return b
}

func TestNormalizeIsIdempotent(t *testing.T) {
	b := enrolmentBatch(
		dataset.RawRow{"date": "5-3-2024", "state": "tamil nadu", "district": "  chennai", "age_0_5": "3.7", "age_5_17": "x", "age_18_greater": "2"},
		dataset.RawRow{"date": "31-12-2023", "state": "", "district": "madurai", "age_0_5": "-1", "age_5_17": "4", "age_18_greater": ""},
	)
	once, _ := clean.Normalize(b)
	twice, rep := clean.Normalize(toRaw(dataset.Enrolment, once))
	require.Equal(t, once, twice)
	assert.Zero(t, rep.DroppedDates)
	assert.Zero(t, rep.CoercedValues)
}

func TestParseCount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12", 12, true},
		{" 12.7 ", 12, true},
		{"-3", -3, true},
		{"1e2", 100, true},
		{"", 0, false},
		{"NaN", 0, false},
		{"twelve", 0, false},
	}
	for _, c := range cases {
		got, ok := clean.ParseCount(c.in)
		assert.Equal(t, c.want, got, c.in)
		assert.Equal(t, c.ok, ok, c.in)
	}
}

func TestAugmentDerivesCalendar(t *testing.T) {
	recs := []dataset.Record{{Date: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)}, {}}
	out := clean.Augment(recs)
	require.Len(t, out, 2)
	assert.Equal(t, 2024, out[0].Year)
	assert.Equal(t, time.February, out[0].Month)
	assert.Equal(t, "February", out[0].MonthName)
	assert.Equal(t, "2024-02", out[0].YearMonth)
	assert.Empty(t, out[1].YearMonth)
	assert.Empty(t, recs[0].YearMonth, "input must not be modified")

	assert.Empty(t, clean.Augment(nil))
}
