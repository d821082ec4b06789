package export

import (
	"encoding/csv"
	"io"

	"github.com/pkg/errors"
)

// Field is one column of an export: a record key and the header label
// written for it.
type Field struct {
	Key   string
	Label string
}

// Record maps field keys to rendered cell values.
type Record map[string]string

// Write emits an RFC 4180 document: one header row from the field labels,
// then one row per record in field order. Missing keys render as empty
// cells.
func Write(w io.Writer, fields []Field, records []Record) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Label
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "export: write header")
	}

	row := make([]string, len(fields))
	for _, rec := range records {
		for i, f := range fields {
			row[i] = rec[f.Key]
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "export: write row")
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "export: flush")
}

// Read parses a document produced by Write back into records keyed by the
// given fields. The header row is validated against the field labels.
func Read(r io.Reader, fields []Field) ([]Record, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "export: read header")
	}
	if len(header) != len(fields) {
		return nil, errors.Errorf("export: header has %d columns, want %d", len(header), len(fields))
	}
	for i, f := range fields {
		if header[i] != f.Label {
			return nil, errors.Errorf("export: column %d is %q, want %q", i, header[i], f.Label)
		}
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "export: read row")
		}
		rec := make(Record, len(fields))
		for i, f := range fields {
			rec[f.Key] = row[i]
		}
		records = append(records, rec)
	}
	return records, nil
}
