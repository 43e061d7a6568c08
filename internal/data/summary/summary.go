// Package summary reads the upstream awards summary workbook: one row per
// student with the list of awards that still need a category.
package summary

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/yungbote/award-ledger/internal/data/tabular"
	"github.com/yungbote/award-ledger/internal/domain"
	"github.com/yungbote/award-ledger/internal/pkg/logger"
)

const SheetName = "Summary"

const (
	ColStudentID   = "student_id"
	ColName        = "name"
	ColClassName   = "class_name"
	ColAwards      = "awards"
	ColTotalAwards = "total_awards"
)

func Header() []string {
	return []string{ColStudentID, ColName, ColClassName, ColAwards, ColTotalAwards}
}

type Loader struct {
	path string
	log  *logger.Logger
}

func NewLoader(path string, baseLog *logger.Logger) *Loader {
	return &Loader{path: path, log: baseLog.With("component", "SummaryLoader", "path", path)}
}

func (l *Loader) Path() string { return l.path }

func (l *Loader) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Load returns every student in the summary. A missing file yields an empty
// list. Rows without a readable student id are skipped, and an awards cell
// that is not a JSON array is read as no awards.
func (l *Loader) Load() ([]domain.Student, error) {
	if !l.Exists() {
		l.log.Warn("Summary workbook missing; no students declared")
		return nil, nil
	}
	x, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("open summary: %w", err)
	}
	defer x.Close()

	sheet := SheetName
	if idx, err := x.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = x.GetSheetName(x.GetActiveSheetIndex())
	}
	rows, err := x.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read summary rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[strings.TrimSpace(name)] = i
	}
	if _, ok := cols[ColStudentID]; !ok {
		return nil, fmt.Errorf("summary sheet %q has no %s column", sheet, ColStudentID)
	}
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]domain.Student, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		id, ok := tabular.ParseID(cell(row, ColStudentID))
		if !ok {
			continue
		}
		st := domain.Student{
			StudentID: id,
			Name:      cell(row, ColName),
			ClassName: cell(row, ColClassName),
		}
		if raw := cell(row, ColAwards); raw != "" {
			if err := json.Unmarshal([]byte(raw), &st.Awards); err != nil {
				l.log.Warn("Unreadable awards cell", "row", i+1, "student_id", id, "error", err)
				st.Awards = nil
			}
		}
		out = append(out, st)
	}
	l.log.Info("Loaded summary", "students", len(out))
	return out, nil
}

// Write replaces the summary workbook with students.
func (l *Loader) Write(students []domain.Student) error {
	x := excelize.NewFile()
	defer x.Close()

	if err := x.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := Header()
	if err := x.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, st := range students {
		awards := st.Awards
		if awards == nil {
			awards = []domain.Award{}
		}
		b, err := json.Marshal(awards)
		if err != nil {
			return fmt.Errorf("encode awards for student %d: %w", st.StudentID, err)
		}
		row := []interface{}{st.StudentID, st.Name, st.ClassName, string(b), st.TotalAwards()}
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := x.SetSheetRow(SheetName, addr, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := x.SaveAs(l.path); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// EnsureTemplate creates a header-only summary workbook when none exists.
// It reports whether a file was created.
func (l *Loader) EnsureTemplate() (bool, error) {
	if l.Exists() {
		return false, nil
	}
	if err := l.Write(nil); err != nil {
		return false, err
	}
	l.log.Info("Created summary template")
	return true, nil
}
