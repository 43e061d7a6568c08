package domain

import "gorm.io/datatypes"

// Award is one entry in the upstream summary file.
type Award struct {
	Name     string `json:"name"`
	ImageURL string `json:"image"`
}

// Student is a subject as declared by the upstream summary, with the list
// of awards waiting to be classified.
type Student struct {
	StudentID int64
	Name      string
	ClassName string
	Awards    []Award
}

func (s Student) TotalAwards() int { return len(s.Awards) }

// StudentRow is the relational mirror of an AwardRecord. It is written on
// every persist and never read back into the index on startup.
type StudentRow struct {
	StudentID          int64          `gorm:"column:student_id;primaryKey;autoIncrement:false" json:"student_id"`
	Name               string         `gorm:"column:name;type:text" json:"name"`
	ClassName          string         `gorm:"column:class_name;type:text" json:"class_name"`
	CertTotalPoints    float64        `gorm:"column:cert_total_points;type:real;not null;default:0" json:"cert_total_points"`
	AwardTotalPoints   float64        `gorm:"column:award_total_points;type:real;not null;default:0" json:"award_total_points"`
	RecordedAwardCount int            `gorm:"column:recorded_award_count;type:integer;not null;default:0" json:"recorded_award_count"`
	AwardLabels        datatypes.JSON `gorm:"column:award_labels;type:text;not null;default:'[]'" json:"award_labels"`
}

func (StudentRow) TableName() string { return "students" }
