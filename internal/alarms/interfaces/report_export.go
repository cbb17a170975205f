package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	alarms "plant-scada/internal/alarms/domain"
)

// BuildAlarmReportPDF renders a PDF report over a set of alarm events.
func BuildAlarmReportPDF(events []*alarms.Event, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Plant Alarm Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Events: %d", len(events)))
	pdf.Ln(5)

	active := 0
	bySeverity := map[alarms.Severity]int{}
	for _, event := range events {
		if event.Active() {
			active++
		}
		bySeverity[event.Severity]++
	}
	pdf.Cell(0, 6, fmt.Sprintf("Active: %d", active))
	pdf.Ln(5)
	for _, severity := range []alarms.Severity{alarms.SeverityCritical, alarms.SeverityHigh, alarms.SeverityMedium, alarms.SeverityLow, alarms.SeverityInfo} {
		if count := bySeverity[severity]; count > 0 {
			pdf.Cell(0, 6, fmt.Sprintf("%s: %d", severity, count))
			pdf.Ln(5)
		}
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(35, 6, "Time", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Equipment", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(95, 6, "Message", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, event := range events {
		status := "ACTIVE"
		if !event.Active() {
			status = "RESOLVED"
		} else if event.Acknowledged {
			status = "ACKED"
		}
		pdf.CellFormat(35, 6, event.Timestamp.Format("2006-01-02 15:04:05"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, event.EquipmentName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(22, 6, string(event.Severity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, string(event.Type), "1", 0, "L", false, 0, "")
		pdf.CellFormat(95, 6, event.Message, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, status, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
