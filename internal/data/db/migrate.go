package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/award-ledger/internal/domain"
)

// studentColumns are probed by field name on every open. Older files may
// predate any of them except the primary key.
var studentColumns = []string{
	"Name",
	"ClassName",
	"CertTotalPoints",
	"AwardTotalPoints",
	"RecordedAwardCount",
	"AwardLabels",
}

// EnsureStudentsSchema creates the students table when absent, otherwise
// adds any expected column it lacks. It never drops or rewrites columns.
// It returns the names of the columns it added.
func EnsureStudentsSchema(db *gorm.DB) ([]string, error) {
	m := db.Migrator()
	model := &domain.StudentRow{}

	if !m.HasTable(model) {
		if err := m.CreateTable(model); err != nil {
			return nil, fmt.Errorf("create students table: %w", err)
		}
		return nil, nil
	}

	var added []string
	for _, field := range studentColumns {
		if m.HasColumn(model, field) {
			continue
		}
		if err := m.AddColumn(model, field); err != nil {
			return added, fmt.Errorf("add students.%s: %w", field, err)
		}
		added = append(added, field)
	}
	return added, nil
}
