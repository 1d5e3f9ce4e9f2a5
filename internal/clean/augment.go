package clean

import (
	"fmt"

	"github.com/KaramelBytes/uidpulse/internal/dataset"
)

// Augment returns a copy of recs with the calendar fields filled. The input is not modified.
// Records with a zero date keep an empty calendar.
func Augment(recs []dataset.Record) []dataset.Record {
	if recs == nil {
		return nil
	}
	out := make([]dataset.Record, len(recs))
	copy(out, recs)
	for i := range out {
		d := out[i].Date
		if d.IsZero() {
			continue
		}
		out[i].Calendar = dataset.Calendar{
			Year:      d.Year(),
			Month:     d.Month(),
			MonthName: d.Month().String(),
			YearMonth: fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month())),
		}
	}
	return out
}

// Batch runs Normalize then Augment.
func Batch(batch dataset.RawBatch) ([]dataset.Record, Report) {
	recs, rep := Normalize(batch)
	return Augment(recs), rep
}
