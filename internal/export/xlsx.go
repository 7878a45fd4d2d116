package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/citycache/internal/model"
)

// SheetName is the worksheet holding exported records.
const SheetName = "Cities"

var xlsxHeader = []string{"Group", "Name", "State", "Country", "Latitude", "Longitude"}

// WriteXLSX saves the cache to path as a single sheet workbook with one row
// per record under a header row.
func WriteXLSX(path string, c *model.Cache) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}

	for _, key := range c.Keys() {
		for _, r := range c.Records(key) {
			row := sheet.AddRow()
			row.AddCell().SetString(key)
			row.AddCell().SetString(r.Name)
			row.AddCell().SetString(r.State)
			row.AddCell().SetString(r.Country)
			row.AddCell().SetFloat(r.Lat)
			row.AddCell().SetFloat(r.Lon)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
