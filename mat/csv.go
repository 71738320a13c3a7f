package mat

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ReadCSV reads one square matrix per record, each record holding the row major entries.
// Entries are numbers in numpy notation, e.g. "0.5" or "(0.5+1j)".
func ReadCSV(fpath string) ([]*COO, error) {
	f, err := os.Open(fpath)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	r.TrimLeadingSpace = true

	ms := make([]*COO, 0)
	for i := 0; ; i++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%d", i))
		}

		flat := make([]complex128, 0, len(rec))
		for j, s := range rec {
			v, err := ParseNumpy(s)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%d %d %#v", i, j, s))
			}
			flat = append(flat, v)
		}
		m, err := Square(flat)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%d", i))
		}
		ms = append(ms, m)
	}
	return ms, nil
}

// WriteCSV writes ms in the format read by ReadCSV.
func WriteCSV(fpath string, ms []*COO) error {
	f, err := os.Create(fpath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := csv.NewWriter(f)

Loop:
	for _, m := range ms {
		row := make([]string, 0, m.rows*m.cols)
		for _, denseRow := range m.Dense() {
			for _, v := range denseRow {
				row = append(row, FormatNumpy(v))
			}
		}
		if err1 := w.Write(row); err1 != nil && err == nil {
			err = errors.Wrap(err1, "")
			break Loop
		}
	}

	w.Flush()
	if err1 := w.Error(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if err1 := f.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}
