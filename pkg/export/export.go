// Package export writes scored records as CSV or XLSX.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/codeGROOVE-dev/actiscore/pkg/pipeline"
)

// SheetName is the worksheet that holds the records.
const SheetName = "Sleep Metrics"

// WriteCSV writes a header row plus one row per record. Null values are empty cells.
func WriteCSV(w io.Writer, records []pipeline.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(pipeline.Columns()); err != nil {
		return err
	}
	for i := range records {
		vals := records[i].Values()
		row := make([]string, len(vals))
		for j, v := range vals {
			row[j] = format(v)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// WriteXLSX writes the records to a single-sheet workbook with a frozen header.
func WriteXLSX(w io.Writer, records []pipeline.Record) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("deleting default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for col, header := range pipeline.Columns() {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			return fmt.Errorf("setting header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("styling header %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, float64(max(len(header), 10))+2); err != nil {
			return fmt.Errorf("setting column width: %w", err)
		}
	}

	for i := range records {
		row := i + 2
		for col, v := range records[i].Values() {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("setting cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// FileSink writes a run's records to a file whose format follows its
// extension (.csv or .xlsx). It satisfies batch.Sink.
type FileSink struct {
	Path string
}

// SaveRecords writes all records, replacing the file.
func (s FileSink) SaveRecords(_ context.Context, records []pipeline.Record) error {
	write := WriteCSV
	switch ext := strings.ToLower(filepath.Ext(s.Path)); ext {
	case ".csv":
	case ".xlsx":
		write = WriteXLSX
	default:
		return fmt.Errorf("unsupported export format %q", ext)
	}
	f, err := os.Create(s.Path)
	if err != nil {
		return err
	}
	if err := write(f, records); err != nil {
		_ = f.Close() //nolint:errcheck // already failing
		return err
	}
	return f.Close()
}
