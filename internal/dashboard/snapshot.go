package dashboard

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/skobkin/amdgputop/internal/metrics"
	"github.com/skobkin/amdgputop/internal/render"
)

// WriteSnapshot reads every row once and prints it as plain text, without
// touching the terminal mode. Bar rows also get the clamped percentage. The
// readings go to sink when it is not nil.
func WriteSnapshot(w io.Writer, rows []metrics.Row, device Fetcher, sink Sink) error {
	if len(rows) == 0 {
		return ErrNoRows
	}

	readings := make([]metrics.Reading, 0, len(rows))
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, row := range rows {
		sample, _ := device.Fetch(row.Kind)
		readings = append(readings, metrics.Reading{Kind: row.Kind, Sample: sample})

		var err error
		if row.Bar && sample.Fraction != nil {
			fraction := render.Clamp(*sample.Fraction)
			_, err = fmt.Fprintf(tw, "%s\t%s\t(%.0f%%, %s)\n", row.Label, sample.Text, fraction*100, render.BandFor(fraction))
		} else {
			_, err = fmt.Fprintf(tw, "%s\t%s\n", row.Label, sample.Text)
		}
		if err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if sink != nil {
		if err := sink.Publish(readings); err != nil {
			return fmt.Errorf("publish readings: %w", err)
		}
	}
	return nil
}
