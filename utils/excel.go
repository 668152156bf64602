package utils

import (
	"bytes"
	"fmt"
	"strconv"

	"meter-reading-backend/db/models"

	"github.com/xuri/excelize/v2"
)

const measuresSheetName = "Measures"

// MeasureExportHeaders are the column titles of the measures workbook, in order.
var MeasureExportHeaders = []string{
	"Measure UUID",
	"Measure Datetime",
	"Measure Type",
	"Extracted Value",
	"Confirmed Value",
	"Has Confirmed",
	"Image URL",
}

// BuildMeasuresWorkbook writes one row per measure below a header row.
func BuildMeasuresWorkbook(measures []models.Measure) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(measuresSheetName)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("error removing default sheet: %w", err)
	}

	for col, header := range MeasureExportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(measuresSheetName, cell, header); err != nil {
			return nil, fmt.Errorf("error setting header %s: %w", header, err)
		}
	}

	for i, m := range measures {
		confirmedValue := ""
		if m.MeasureValue.Valid {
			confirmedValue = m.MeasureValue.Decimal.String()
		}

		row := []interface{}{
			m.MeasureUUID.String(),
			m.MeasureDatetime.UTC().Format("2006-01-02T15:04:05.000Z"),
			string(m.MeasureType),
			m.ExtractedValue,
			confirmedValue,
			strconv.FormatBool(m.HasConfirmed),
			m.ImageURL,
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(measuresSheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(measuresSheetName, "A", "A", 38); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(measuresSheetName, "G", "G", 60); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}
	return buf, nil
}
