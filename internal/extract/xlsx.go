package extract

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXExtractor reads the leading rows of the first sheets of a workbook,
// enough context for classification without loading full datasets.
type XLSXExtractor struct {
	MaxSheets int
	MaxRows   int
}

func (e *XLSXExtractor) Extract(path string) (string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "xlsx: open %s", path)
	}

	sheets := f.Sheets
	if e.MaxSheets > 0 && len(sheets) > e.MaxSheets {
		sheets = sheets[:e.MaxSheets]
	}

	var b strings.Builder
	for _, sheet := range sheets {
		rows := sheet.Rows
		if e.MaxRows > 0 && len(rows) > e.MaxRows {
			rows = rows[:e.MaxRows]
		}
		for _, row := range rows {
			var cells []string
			for _, cell := range row.Cells {
				if v := strings.TrimSpace(cell.String()); v != "" {
					cells = append(cells, v)
				}
			}
			if len(cells) > 0 {
				b.WriteString(strings.Join(cells, " "))
				b.WriteByte('\n')
			}
		}
	}
	return b.String(), nil
}
