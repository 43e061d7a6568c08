package students

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/award-ledger/internal/domain"
	"github.com/yungbote/award-ledger/internal/pkg/dbctx"
	"github.com/yungbote/award-ledger/internal/pkg/logger"
)

type StudentRepo interface {
	Upsert(dbc dbctx.Context, row *domain.StudentRow) error
	List(dbc dbctx.Context) ([]*domain.StudentRow, error)
	Count(dbc dbctx.Context) (int64, error)
}

type studentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentRepo(db *gorm.DB, baseLog *logger.Logger) StudentRepo {
	return &studentRepo{db: db, log: baseLog.With("repo", "StudentRepo")}
}

// Upsert inserts the row or overwrites every non-key column of the
// existing row with the same student_id.
func (r *studentRepo) Upsert(dbc dbctx.Context, row *domain.StudentRow) error {
	if row == nil {
		return nil
	}
	return dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name",
				"class_name",
				"cert_total_points",
				"award_total_points",
				"recorded_award_count",
				"award_labels",
			}),
		}).
		Create(row).Error
}

func (r *studentRepo) List(dbc dbctx.Context) ([]*domain.StudentRow, error) {
	var results []*domain.StudentRow
	if err := dbc.Conn(r.db).Order("student_id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *studentRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := dbc.Conn(r.db).Model(&domain.StudentRow{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
