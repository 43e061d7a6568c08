package domain

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// ToRow flattens the record for the relational table. The label column holds
// the full fixed-length array so slot positions survive.
func (r *AwardRecord) ToRow() (*StudentRow, error) {
	labels, err := json.Marshal(r.Labels())
	if err != nil {
		return nil, fmt.Errorf("encode labels for student %d: %w", r.StudentID, err)
	}
	return &StudentRow{
		StudentID:          r.StudentID,
		Name:               r.Name,
		ClassName:          r.ClassName,
		CertTotalPoints:    r.CertTotalPoints,
		AwardTotalPoints:   r.AwardTotalPoints,
		RecordedAwardCount: r.RecordedAwardCount,
		AwardLabels:        datatypes.JSON(labels),
	}, nil
}

// RecordFromRow is the inverse of ToRow. An empty label column decodes to an
// all-empty label array.
func RecordFromRow(row *StudentRow) (*AwardRecord, error) {
	rec := NewAwardRecord(row.StudentID, row.Name, row.ClassName)
	rec.CertTotalPoints = row.CertTotalPoints
	rec.AwardTotalPoints = row.AwardTotalPoints
	rec.RecordedAwardCount = row.RecordedAwardCount
	if len(row.AwardLabels) > 0 {
		var labels []string
		if err := json.Unmarshal(row.AwardLabels, &labels); err != nil {
			return nil, fmt.Errorf("decode labels for student %d: %w", row.StudentID, err)
		}
		rec.SetLabels(labels)
	}
	return rec, nil
}
