// Package classification implements the per-slot state machine that moves
// an award slot between unset and a labeled category while keeping the
// record's point totals and recorded count consistent with its labels.
package classification

import (
	"fmt"

	"github.com/yungbote/award-ledger/internal/domain"
	apperr "github.com/yungbote/award-ledger/internal/pkg/errors"
)

type Kind string

const (
	// KindSet labels an empty slot.
	KindSet Kind = "set"
	// KindReplace moves a labeled slot to a different category.
	KindReplace Kind = "replace"
	// KindToggleOff clears a slot that was clicked with its current category.
	KindToggleOff Kind = "toggle_off"
)

// Step is one point mutation. Steps are applied in order as separate
// additions; a replace is always a subtraction followed by an addition.
type Step struct {
	Bucket domain.Bucket `json:"bucket"`
	Amount float64       `json:"amount"`
}

// Transition is the planned effect of one classify call.
type Transition struct {
	Slot       int             `json:"slot"`
	Previous   string          `json:"previous"`
	NewLabel   string          `json:"newLabel"`
	Kind       Kind            `json:"kind"`
	Steps      []Step          `json:"steps"`
	CertDelta  float64         `json:"certDelta"`
	AwardDelta float64         `json:"awardDelta"`
	CountDelta int             `json:"countDelta"`
	Requested  domain.Category `json:"requested"`
}

// Plan computes the transition for classifying slot with category without
// touching rec.
func Plan(rec *domain.AwardRecord, slot int, category domain.Category) (Transition, error) {
	previous, err := rec.Label(slot)
	if err != nil {
		return Transition{}, err
	}
	if !category.Valid() {
		return Transition{}, fmt.Errorf("%w: %q", apperr.ErrUnknownCategory, string(category))
	}

	t := Transition{Slot: slot, Previous: previous, Requested: category}

	if previous == string(category) {
		t.Kind = KindToggleOff
		t.NewLabel = ""
		t.addStep(reverse(domain.Category(previous)))
		if rec.RecordedAwardCount > 0 {
			t.CountDelta = -1
		}
		return t, nil
	}

	if previous != "" {
		t.Kind = KindReplace
		t.addStep(reverse(domain.Category(previous)))
	} else {
		t.Kind = KindSet
		t.CountDelta = 1
	}
	t.addStep(contribution(category))
	t.NewLabel = string(category)
	return t, nil
}

// Apply mutates rec. Each step is a separate floating point addition.
func (t Transition) Apply(rec *domain.AwardRecord) {
	for _, s := range t.Steps {
		switch s.Bucket {
		case domain.BucketCert:
			rec.AddCertTotalPoints(s.Amount)
		case domain.BucketAward:
			rec.AddAwardTotalPoints(s.Amount)
		}
	}
	switch {
	case t.Kind == KindToggleOff:
		rec.DecrementRecordedAwardCount()
	case t.CountDelta > 0:
		rec.IncrementRecordedAwardCount()
	}
	rec.AwardLabels[t.Slot] = t.NewLabel
}

// Classify plans and applies in one call. On error rec is unchanged.
func Classify(rec *domain.AwardRecord, slot int, category domain.Category) (Transition, error) {
	t, err := Plan(rec, slot, category)
	if err != nil {
		return Transition{}, err
	}
	t.Apply(rec)
	return t, nil
}

func (t *Transition) addStep(s Step) {
	if s.Bucket == domain.BucketNone {
		return
	}
	t.Steps = append(t.Steps, s)
	switch s.Bucket {
	case domain.BucketCert:
		t.CertDelta += s.Amount
	case domain.BucketAward:
		t.AwardDelta += s.Amount
	}
}

func contribution(c domain.Category) Step {
	return Step{Bucket: c.Bucket(), Amount: c.Weight()}
}

// reverse undoes a stored label's contribution. Labels outside the enum
// (for example from a foreign snapshot) weigh nothing.
func reverse(c domain.Category) Step {
	return Step{Bucket: c.Bucket(), Amount: -c.Weight()}
}
