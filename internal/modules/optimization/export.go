package optimization

import (
	"encoding/csv"
	"io"
)

// ExportCSV writes lineups in the contest upload format: one row per
// lineup, one column per roster slot holding the entity display name, no
// header row. The upload endpoint is positional, so the column count must
// equal the roster size exactly.
func ExportCSV(w io.Writer, lineups []Lineup, displayNames map[string]string) error {
	cw := csv.NewWriter(w)
	for _, l := range lineups {
		row := make([]string, len(l.EntityIDs))
		for i, id := range l.EntityIDs {
			name := displayNames[id]
			if name == "" {
				name = id
			}
			row[i] = name
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
