package services

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/yungbote/markbook-backend/internal/markbook"
	"github.com/yungbote/markbook-backend/internal/platform/apierr"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
)

const (
	summarySheet  = "Summary"
	maxSheetChars = 31
)

var ErrEmptyRoster = errors.New("spreadsheet does not contain any students")

// WorkbookService renders a markbook as an xlsx workbook and reads class
// rosters back from one.
type WorkbookService interface {
	Export(st markbook.State) ([]byte, error)
	ImportRoster(r io.Reader) ([]markbook.Student, error)
}

type workbookService struct {
	log      *logger.Logger
	settings markbook.Settings
}

func NewWorkbookService(log *logger.Logger, settings markbook.Settings) WorkbookService {
	return &workbookService{log: log.With("service", "WorkbookService"), settings: settings}
}

func (ws *workbookService) Export(st markbook.State) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			ws.log.Warn("close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	visible := st.VisibleMetrics.Visible()
	if err := ws.writeSummary(f, st, visible, bold); err != nil {
		return nil, err
	}
	for _, k := range visible {
		if err := ws.writeMetricSheet(f, st, k, bold); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (ws *workbookService) writeSummary(f *excelize.File, st markbook.State, visible []markbook.MetricKey, headerStyle int) error {
	header := []interface{}{"Name", "House", "Status"}
	for _, k := range visible {
		label := ws.settings.Metric(k).Label
		header = append(header, label+" Avg", label+" Total")
	}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return fmt.Errorf("summary header: %w", err)
	}
	if err := f.SetRowStyle(summarySheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("summary header style: %w", err)
	}

	houseStyles := map[string]int{}
	for i, s := range st.Students {
		row := []interface{}{s.Name, s.House, s.Status}
		for _, k := range visible {
			row = append(row, markbook.Average(s.Data, st.Weeks, k), markbook.Total(s.Data, st.Weeks, k))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("summary row %d: %w", i+2, err)
		}

		style, ok := houseStyles[s.House]
		if !ok {
			style, err = f.NewStyle(&excelize.Style{
				Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{ws.settings.HouseColor(s.House)}},
				Font: &excelize.Font{Color: "#FFFFFF"},
			})
			if err != nil {
				return fmt.Errorf("house style: %w", err)
			}
			houseStyles[s.House] = style
		}
		houseCell, _ := excelize.CoordinatesToCellName(2, i+2)
		if err := f.SetCellStyle(summarySheet, houseCell, houseCell, style); err != nil {
			return fmt.Errorf("house cell style: %w", err)
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 24)
}

func (ws *workbookService) writeMetricSheet(f *excelize.File, st markbook.State, key markbook.MetricKey, headerStyle int) error {
	name := sheetName(ws.settings.Metric(key).Label)
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("new sheet %q: %w", name, err)
	}
	header := []interface{}{"Name"}
	for _, w := range st.Weeks {
		header = append(header, w)
	}
	header = append(header, "Total")
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", name, err)
	}
	if err := f.SetRowStyle(name, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("%s header style: %w", name, err)
	}
	for i, s := range st.Students {
		row := []interface{}{s.Name}
		for _, w := range st.Weeks {
			row = append(row, s.Data.Value(key, w))
		}
		row = append(row, markbook.Total(s.Data, st.Weeks, key))
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", name, i+2, err)
		}
	}
	return f.SetColWidth(name, "A", "A", 24)
}

// ImportRoster reads Name, House and Status from the first sheet, skipping
// the header row. Blank names are skipped; blank house or status take the
// configured defaults. Errors are *apierr.Error with a 400 status.
func (ws *workbookService) ImportRoster(r io.Reader) ([]markbook.Student, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apierr.New(http.StatusBadRequest, "Failed to read roster", fmt.Errorf("failed to open excel file: %w", err))
	}
	defer func() {
		if err := f.Close(); err != nil {
			ws.log.Warn("close roster workbook", "error", err)
		}
	}()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, apierr.New(http.StatusBadRequest, "Failed to read roster", errors.New("excel file does not contain any sheets"))
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apierr.New(http.StatusBadRequest, "Failed to read roster", fmt.Errorf("failed to get rows from sheet %s: %w", sheet, err))
	}

	store := markbook.NewStore()
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		house, status := ws.settings.DefaultHouse, ws.settings.DefaultStatus
		if len(row) > 1 && strings.TrimSpace(row[1]) != "" {
			house = strings.TrimSpace(row[1])
		}
		if len(row) > 2 && strings.TrimSpace(row[2]) != "" {
			status = strings.TrimSpace(row[2])
		}
		store.AddStudent(strings.TrimSpace(row[0]), house, status)
	}
	students := store.Students()
	if len(students) == 0 {
		return nil, apierr.New(http.StatusBadRequest, "Roster is empty", ErrEmptyRoster)
	}
	ws.log.Info("Roster imported", "sheet", sheet, "students", len(students))
	return students, nil
}

func sheetName(label string) string {
	name := strings.NewReplacer(":", "", "\\", "", "/", "", "?", "", "*", "", "[", "", "]", "").Replace(label)
	if len([]rune(name)) > maxSheetChars {
		name = string([]rune(name)[:maxSheetChars])
	}
	if name == "" || name == summarySheet {
		name = "Metric " + name
	}
	return name
}
