package domain

import (
	"fmt"

	apperr "github.com/yungbote/award-ledger/internal/pkg/errors"
)

// LabelCapacity is the hard ceiling on award slots per student.
const LabelCapacity = 50

// AwardRecord is the per-student classification state. The three totals are
// derived from AwardLabels and are only changed through the classification
// engine or bulk import.
type AwardRecord struct {
	StudentID int64  `json:"studentId"`
	Name      string `json:"name"`
	ClassName string `json:"className"`

	CertTotalPoints    float64 `json:"certTotalPoints"`
	AwardTotalPoints   float64 `json:"awardTotalPoints"`
	RecordedAwardCount int     `json:"recordedAwardCount"`

	AwardLabels [LabelCapacity]string `json:"labels"`
}

func NewAwardRecord(studentID int64, name, className string) *AwardRecord {
	return &AwardRecord{StudentID: studentID, Name: name, ClassName: className}
}

// CheckSlot returns ErrOutOfRange unless 0 <= slot < LabelCapacity.
func CheckSlot(slot int) error {
	if slot < 0 || slot >= LabelCapacity {
		return fmt.Errorf("%w: slot %d (capacity %d)", apperr.ErrOutOfRange, slot, LabelCapacity)
	}
	return nil
}

func (r *AwardRecord) Label(slot int) (string, error) {
	if err := CheckSlot(slot); err != nil {
		return "", err
	}
	return r.AwardLabels[slot], nil
}

func (r *AwardRecord) SetLabel(slot int, label string) error {
	if err := CheckSlot(slot); err != nil {
		return err
	}
	r.AwardLabels[slot] = label
	return nil
}

func (r *AwardRecord) AddCertTotalPoints(delta float64)  { r.CertTotalPoints += delta }
func (r *AwardRecord) AddAwardTotalPoints(delta float64) { r.AwardTotalPoints += delta }
func (r *AwardRecord) IncrementRecordedAwardCount()      { r.RecordedAwardCount++ }

// DecrementRecordedAwardCount never takes the count below zero.
func (r *AwardRecord) DecrementRecordedAwardCount() {
	if r.RecordedAwardCount > 0 {
		r.RecordedAwardCount--
	}
}

// LabeledSlots counts slots holding any non-empty label.
func (r *AwardRecord) LabeledSlots() int {
	n := 0
	for _, l := range r.AwardLabels {
		if l != "" {
			n++
		}
	}
	return n
}

// Labels returns a copy of the slot labels as a slice.
func (r *AwardRecord) Labels() []string {
	out := make([]string, LabelCapacity)
	copy(out, r.AwardLabels[:])
	return out
}

// SetLabels overwrites the slots from labels, padding with "" when labels is
// shorter than capacity and ignoring entries beyond it.
func (r *AwardRecord) SetLabels(labels []string) {
	r.AwardLabels = [LabelCapacity]string{}
	copy(r.AwardLabels[:], labels)
}

func (r *AwardRecord) Clone() *AwardRecord {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
