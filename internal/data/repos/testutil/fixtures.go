package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/award-ledger/internal/domain"
)

// Record builds an AwardRecord with the given labels placed at the given
// slots and totals computed from them.
func Record(id int64, name, className string, labels map[int]domain.Category) *domain.AwardRecord {
	rec := domain.NewAwardRecord(id, name, className)
	for slot, c := range labels {
		rec.AwardLabels[slot] = string(c)
		rec.RecordedAwardCount++
		switch c.Bucket() {
		case domain.BucketCert:
			rec.CertTotalPoints += c.Weight()
		case domain.BucketAward:
			rec.AwardTotalPoints += c.Weight()
		}
	}
	return rec
}

func SeedStudent(tb testing.TB, ctx context.Context, tx *gorm.DB, rec *domain.AwardRecord) *domain.StudentRow {
	tb.Helper()
	row, err := rec.ToRow()
	if err != nil {
		tb.Fatalf("seed student: %v", err)
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed student: %v", err)
	}
	return row
}
