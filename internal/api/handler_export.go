package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"loom-maintenance-backend/internal/model"
)

const (
	historySheet    = "Wartungshistorie"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var historyHeader = []interface{}{
	"Datum", "Maschine", "Seriennummer", "Techniker", "Betriebsstunden", "Komponenten", "Ersatzteile", "Notizen",
}

// ExportHistory streams the maintenance history as an xlsx workbook.
func (h *Handler) ExportHistory(c *gin.Context) {
	doc, ok := h.read(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := writeHistoryWorkbook(&buf, doc); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="maintenance-history.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// writeHistoryWorkbook writes one row per maintenance record, newest first,
// with machine, component and part IDs resolved to names.
func writeHistoryWorkbook(w io.Writer, doc *model.Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(historySheet, "A1", &historyHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(historySheet, 1, 1, bold); err != nil {
		return err
	}
	if err := f.SetColWidth(historySheet, "A", "H", 20); err != nil {
		return err
	}

	records := doc.MaintenanceHistory
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		row := []interface{}{
			r.Timestamp.Format("2006-01-02 15:04"),
			r.MachineID,
			"",
			r.Technician,
			r.OperatingHours,
			strings.Join(componentNames(doc, r), ", "),
			strings.Join(partLabels(doc, r), ", "),
			r.Notes,
		}
		if m := doc.Machine(r.MachineID); m != nil {
			row[1], row[2] = m.Name, m.Serial
		}
		cell, err := excelize.CoordinatesToCellName(1, len(records)-i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func componentNames(doc *model.Document, r model.MaintenanceRecord) []string {
	var t *model.MaintenanceTemplate
	if m := doc.Machine(r.MachineID); m != nil && m.TemplateID() != "" {
		t = doc.Template(m.TemplateID())
	}
	names := make([]string, 0, len(r.ComponentsServiced))
	for _, id := range r.ComponentsServiced {
		name := id
		if t != nil {
			if comp, ok := t.Component(id); ok {
				name = comp.Name
			}
		}
		names = append(names, name)
	}
	return names
}

func partLabels(doc *model.Document, r model.MaintenanceRecord) []string {
	labels := make([]string, 0, len(r.PartsUsed))
	for _, pu := range r.PartsUsed {
		name := pu.PartID
		if p := doc.Part(pu.PartID); p != nil {
			name = p.Name
		}
		labels = append(labels, fmt.Sprintf("%s x%d", name, pu.Quantity))
	}
	return labels
}
