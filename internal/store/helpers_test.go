package store

import (
	"context"

	"github.com/yungbote/award-ledger/internal/pkg/dbctx"
)

func dbctxFor(ctx context.Context) dbctx.Context { return dbctx.Context{Ctx: ctx} }
