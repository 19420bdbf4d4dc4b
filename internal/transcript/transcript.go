// Package transcript reads and writes the (text, chunk) table produced per job.
package transcript

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Header is the first CSV record.
var Header = []string{"text", "chunk"}

// Row pairs recognized text with the chunk file it came from.
type Row struct {
	Text  string
	Chunk string // bare chunk file name
}

// Write stores rows at path. The file appears only once fully written.
func Write(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := Encode(tmp, rows); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Encode writes rows as CSV with a header to w.
func Encode(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Text, r.Chunk}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read loads a transcript written by Write.
func Read(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(Header)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 || records[0][0] != Header[0] || records[0][1] != Header[1] {
		return nil, fmt.Errorf("parse %s: missing text,chunk header", filepath.Base(path))
	}
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, Row{Text: rec[0], Chunk: rec[1]})
	}
	return rows, nil
}

// Render formats rows as a table; text wider than textWidth wraps (0 disables).
func Render(rows []Row, textWidth int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Chunk", "Text"})
	for i, r := range rows {
		tw.AppendRow(table.Row{strconv.Itoa(i + 1), r.Chunk, r.Text})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, WidthMax: textWidth},
	})
	return tw.Render()
}
