package students

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/award-ledger/internal/data/repos/testutil"
	"github.com/yungbote/award-ledger/internal/domain"
	"github.com/yungbote/award-ledger/internal/pkg/dbctx"
)

func TestStudentRepo(t *testing.T) {
	db := testutil.DB(t)
	repo := NewStudentRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	rec := testutil.Record(7, "Wang", "C3", map[int]domain.Category{0: domain.CategoryNational, 4: domain.CategoryNone})
	row, err := rec.ToRow()
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(dbc, row))

	rows, err := repo.List(dbc)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	back, err := domain.RecordFromRow(rows[0])
	require.NoError(t, err)
	assert.Equal(t, *rec, *back)
}

func TestStudentRepoUpsertOverwritesAllFields(t *testing.T) {
	db := testutil.DB(t)
	repo := NewStudentRepo(db, testutil.Logger(t))
	dbc := dbctx.Background()

	first := testutil.Record(1, "A", "C1", map[int]domain.Category{0: domain.CategoryCert})
	row, err := first.ToRow()
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(dbc, row))

	// totals back to zero exercise the column defaults on the insert half
	second := testutil.Record(1, "A2", "C9", nil)
	row, err = second.ToRow()
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(dbc, row))

	n, err := repo.Count(dbc)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rows, err := repo.List(dbc)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	back, err := domain.RecordFromRow(rows[0])
	require.NoError(t, err)
	assert.Equal(t, *second, *back)
}

func TestStudentRepoListOrdered(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewStudentRepo(db, testutil.Logger(t))
	ctx := context.Background()

	for _, id := range []int64{30, 10, 20} {
		testutil.SeedStudent(t, ctx, tx, domain.NewAwardRecord(id, "n", "c"))
	}

	rows, err := repo.List(dbctx.Context{Ctx: ctx, Tx: tx})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(10), rows[0].StudentID)
	assert.Equal(t, int64(20), rows[1].StudentID)
	assert.Equal(t, int64(30), rows[2].StudentID)
}
