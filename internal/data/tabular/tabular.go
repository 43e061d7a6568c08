// Package tabular keeps the row-oriented workbook mirror of the record
// index: one header row, then one row per student with one column per
// award slot. The workbook is the source of truth on restart.
package tabular

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/yungbote/award-ledger/internal/domain"
	"github.com/yungbote/award-ledger/internal/pkg/logger"
)

const SheetName = "Students"

const (
	ColStudentID          = "student_id"
	ColName               = "name"
	ColClassName          = "class_name"
	ColCertTotalPoints    = "cert_total_points"
	ColAwardTotalPoints   = "award_total_points"
	ColRecordedAwardCount = "recorded_award_count"
	ColLabelPrefix        = "award_label_"
)

var (
	// ErrMissing is returned when the workbook or its sheet does not exist.
	ErrMissing = errors.New("tabular file missing")
	// ErrLayout is returned when an existing workbook's header does not match
	// the current column layout, so rows cannot be patched in place.
	ErrLayout = errors.New("tabular header does not match current layout")
)

// Header is the canonical column order.
func Header() []string {
	h := []string{
		ColStudentID,
		ColName,
		ColClassName,
		ColCertTotalPoints,
		ColAwardTotalPoints,
		ColRecordedAwardCount,
	}
	for i := 1; i <= domain.LabelCapacity; i++ {
		h = append(h, ColLabelPrefix+strconv.Itoa(i))
	}
	return h
}

type File struct {
	path string
	log  *logger.Logger
}

func New(path string, baseLog *logger.Logger) *File {
	return &File{path: path, log: baseLog.With("component", "TabularFile", "path", path)}
}

func (f *File) Path() string { return f.path }

func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// WriteAll replaces the workbook with a header and one row per record, in
// the order given.
func (f *File) WriteAll(records []*domain.AwardRecord) error {
	x := excelize.NewFile()
	defer x.Close()

	idx, err := x.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	x.SetActiveSheet(idx)
	if err := x.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	header := toCells(Header())
	if err := x.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, rec := range records {
		if err := writeRow(x, i+2, rec); err != nil {
			return err
		}
	}
	return f.save(x)
}

// Upsert overwrites the row whose student_id matches rec, or appends a row
// when there is none. It reports whether a row was appended.
func (f *File) Upsert(rec *domain.AwardRecord) (bool, error) {
	x, err := f.open()
	if err != nil {
		return false, err
	}
	defer x.Close()

	rows, err := x.GetRows(SheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return false, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 || !sameHeader(rows[0]) {
		return false, ErrLayout
	}

	target := -1
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) == 0 {
			continue
		}
		id, ok := ParseID(rows[i][0])
		if ok && id == rec.StudentID {
			target = i + 1
			break
		}
	}
	appended := target == -1
	if appended {
		target = len(rows) + 1
	}
	if err := writeRow(x, target, rec); err != nil {
		return false, err
	}
	return appended, f.save(x)
}

// ReadAll decodes every data row, resolving columns by header name. Rows
// with a missing or non-numeric student id are skipped.
func (f *File) ReadAll() ([]*domain.AwardRecord, error) {
	x, err := f.open()
	if err != nil {
		return nil, err
	}
	defer x.Close()

	rows, err := x.GetRows(SheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[strings.TrimSpace(name)] = i
	}
	idCol, ok := cols[ColStudentID]
	if !ok {
		return nil, fmt.Errorf("%w: no %s column", ErrLayout, ColStudentID)
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	out := make([]*domain.AwardRecord, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if idCol >= len(row) {
			continue
		}
		id, ok := ParseID(row[idCol])
		if !ok {
			if strings.TrimSpace(row[idCol]) != "" {
				f.log.Warn("Skipping row with unreadable student id", "row", i+1, "value", row[idCol])
			}
			continue
		}
		rec := domain.NewAwardRecord(id, cell(row, ColName), cell(row, ColClassName))
		rec.CertTotalPoints = parseFloat(cell(row, ColCertTotalPoints))
		rec.AwardTotalPoints = parseFloat(cell(row, ColAwardTotalPoints))
		rec.RecordedAwardCount = int(parseFloat(cell(row, ColRecordedAwardCount)))
		for slot := 0; slot < domain.LabelCapacity; slot++ {
			rec.AwardLabels[slot] = cell(row, ColLabelPrefix+strconv.Itoa(slot+1))
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", f.path, err)
	}
	return nil
}

func (f *File) open() (*excelize.File, error) {
	if !f.Exists() {
		return nil, ErrMissing
	}
	x, err := excelize.OpenFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	if idx, err := x.GetSheetIndex(SheetName); err != nil || idx < 0 {
		_ = x.Close()
		return nil, fmt.Errorf("%w: sheet %s", ErrMissing, SheetName)
	}
	return x, nil
}

// save writes to a sibling temp file and renames it over the target so a
// crash mid-write never leaves a truncated workbook behind.
func (f *File) save(x *excelize.File) error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := x.Write(tmp); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close workbook: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

func writeRow(x *excelize.File, rowNum int, rec *domain.AwardRecord) error {
	cells := make([]interface{}, 0, 6+domain.LabelCapacity)
	cells = append(cells,
		rec.StudentID,
		rec.Name,
		rec.ClassName,
		rec.CertTotalPoints,
		rec.AwardTotalPoints,
		rec.RecordedAwardCount,
	)
	for _, l := range rec.AwardLabels {
		cells = append(cells, l)
	}
	addr, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := x.SetSheetRow(SheetName, addr, &cells); err != nil {
		return fmt.Errorf("write row for student %d: %w", rec.StudentID, err)
	}
	return nil
}

func sameHeader(row []string) bool {
	want := Header()
	if len(row) != len(want) {
		return false
	}
	for i := range want {
		if strings.TrimSpace(row[i]) != want[i] {
			return false
		}
	}
	return true
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// ParseID accepts integer cells and whole-number floats such as "1001.0".
func ParseID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, true
	}
	fv, err := strconv.ParseFloat(s, 64)
	if err != nil || fv != float64(int64(fv)) {
		return 0, false
	}
	return int64(fv), true
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
