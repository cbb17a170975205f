package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	history "plant-scada/internal/history/domain"
)

// BuildSampleXLSX renders an XLSX workbook for one equipment's samples.
func BuildSampleXLSX(equipmentID string, samples []*history.Sample, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	samplesSheet := "samples"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(samplesSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Historical Samples")
	_ = f.SetCellValue(summarySheet, "A3", "Equipment")
	_ = f.SetCellValue(summarySheet, "B3", equipmentID)
	_ = f.SetCellValue(summarySheet, "A4", "Samples")
	_ = f.SetCellValue(summarySheet, "B4", len(samples))
	_ = f.SetCellValue(summarySheet, "A5", "Generated")
	_ = f.SetCellValue(summarySheet, "B5", generatedAt.Format(time.RFC3339))
	if len(samples) > 0 {
		_ = f.SetCellValue(summarySheet, "A6", "First")
		_ = f.SetCellValue(summarySheet, "B6", samples[0].Timestamp.Format(time.RFC3339))
		_ = f.SetCellValue(summarySheet, "A7", "Last")
		_ = f.SetCellValue(summarySheet, "B7", samples[len(samples)-1].Timestamp.Format(time.RFC3339))
	}

	headers := []string{
		"Timestamp", "Current (A)", "Voltage (V)", "Power (kW)", "Temperature (C)",
		"Active Power (kW)", "Reactive Power (kVAr)", "Power Factor",
		"RPM", "Torque (Nm)", "Frequency (Hz)", "Oil Temp (C)", "Oil Level",
		"Quality", "Source",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(samplesSheet, cell, header)
	}
	for i, sample := range samples {
		row := i + 2
		values := []any{
			sample.Timestamp.Format(time.RFC3339),
			sample.Current,
			sample.Voltage,
			sample.Power,
			sample.Temperature,
			sample.ActivePower,
			sample.ReactivePower,
			sample.PowerFactor,
			optionalCell(sample.RPM),
			optionalCell(sample.Torque),
			optionalCell(sample.Frequency),
			optionalCell(sample.OilTemperature),
			optionalCell(sample.OilLevel),
			sample.QualityIndex,
			sample.Source,
		}
		for col, value := range values {
			if value == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(samplesSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func optionalCell(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}
