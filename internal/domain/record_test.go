package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/yungbote/award-ledger/internal/pkg/errors"
)

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" provincecity ")
	require.NoError(t, err)
	assert.Equal(t, CategoryProvinceCity, c)

	_, err = ParseCategory("")
	assert.ErrorIs(t, err, apperr.ErrUnknownCategory)
	_, err = ParseCategory("Gold")
	assert.ErrorIs(t, err, apperr.ErrUnknownCategory)
}

func TestCategoryBuckets(t *testing.T) {
	assert.Equal(t, BucketCert, CategoryCert.Bucket())
	assert.Equal(t, BucketNone, CategoryNone.Bucket())
	assert.Equal(t, BucketNone, Category("").Bucket())
	for _, c := range []Category{CategoryNational, CategoryProvinceCity, CategorySchool, CategoryCollege} {
		assert.Equal(t, BucketAward, c.Bucket(), c)
		assert.Greater(t, c.Weight(), 0.0, c)
	}
	assert.Equal(t, 0.0, CategoryNone.Weight())
}

func TestSlotBounds(t *testing.T) {
	rec := NewAwardRecord(9, "N", "C")
	require.NoError(t, rec.SetLabel(LabelCapacity-1, "School"))

	_, err := rec.Label(LabelCapacity)
	assert.ErrorIs(t, err, apperr.ErrOutOfRange)
	assert.ErrorIs(t, rec.SetLabel(-1, "School"), apperr.ErrOutOfRange)
}

func TestSetLabelsPadsAndTruncates(t *testing.T) {
	rec := NewAwardRecord(1, "N", "C")
	rec.SetLabels([]string{"Cert", "", "None"})
	assert.Equal(t, "Cert", rec.AwardLabels[0])
	assert.Equal(t, "None", rec.AwardLabels[2])
	assert.Equal(t, "", rec.AwardLabels[LabelCapacity-1])

	long := make([]string, LabelCapacity+5)
	for i := range long {
		long[i] = "School"
	}
	rec.SetLabels(long)
	assert.Equal(t, LabelCapacity, rec.LabeledSlots())
}

func TestRowRoundTrip(t *testing.T) {
	rec := NewAwardRecord(42, "Li", "C2")
	rec.CertTotalPoints = 0.4
	rec.AwardTotalPoints = 1.1
	rec.RecordedAwardCount = 3
	rec.AwardLabels[0] = "Cert"
	rec.AwardLabels[7] = "National"
	rec.AwardLabels[49] = "None"

	row, err := rec.ToRow()
	require.NoError(t, err)
	assert.Equal(t, "students", row.TableName())

	back, err := RecordFromRow(row)
	require.NoError(t, err)
	assert.Equal(t, *rec, *back)
}

func TestCloneIsIndependent(t *testing.T) {
	rec := NewAwardRecord(1, "N", "C")
	cp := rec.Clone()
	cp.AwardLabels[0] = "Cert"
	cp.CertTotalPoints = 0.2
	assert.Equal(t, "", rec.AwardLabels[0])
	assert.Equal(t, 0.0, rec.CertTotalPoints)
}
