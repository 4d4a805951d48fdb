package repository

import (
	"context"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/vision-ocr/internal/common"
	"github.com/joseph-ayodele/vision-ocr/internal/entity"
)

type TextRowRepository interface {
	Insert(ctx context.Context, text string) (int64, error)
	FetchAll(ctx context.Context) ([]*entity.TextRow, error)
	Count(ctx context.Context) (int, error)
}

type textRowRepo struct {
	store *Store
	log   *slog.Logger
}

func NewTextRowRepository(store *Store, log *slog.Logger) TextRowRepository {
	if log == nil {
		log = store.logger
	}
	return &textRowRepo{store: store, log: log}
}

// Insert appends one row and returns the id assigned by the store.
func (r *textRowRepo) Insert(ctx context.Context, text string) (int64, error) {
	query, args := entsql.Dialect(r.store.dialect).
		Insert(TableTextRows).
		Columns("text").
		Values(text).
		Returning("id").
		Query()

	var rows entsql.Rows
	if err := r.store.drv.Query(ctx, query, args, &rows); err != nil {
		r.log.Error("error inserting ocr text into database", "text", text, "err", err)
		return 0, common.NewAppError(common.CodeWrite, "insert into "+TableTextRows, common.ErrWrite, err)
	}
	defer rows.Close()

	id, err := entsql.ScanInt64(rows)
	if err != nil {
		r.log.Error("error reading inserted id", "text", text, "err", err)
		return 0, common.NewAppError(common.CodeWrite, "scan inserted id", common.ErrWrite, err)
	}
	r.log.Debug("ocr_data row inserted", "id", id)
	return id, nil
}

// FetchAll returns every row in insertion (primary key) order.
func (r *textRowRepo) FetchAll(ctx context.Context) ([]*entity.TextRow, error) {
	b := entsql.Dialect(r.store.dialect)
	query, args := b.Select("id", "text").
		From(b.Table(TableTextRows)).
		OrderBy("id").
		Query()

	var rows entsql.Rows
	if err := r.store.drv.Query(ctx, query, args, &rows); err != nil {
		r.log.Error("error fetching data from database", "err", err)
		return nil, common.NewAppError(common.CodeRead, "select from "+TableTextRows, common.ErrRead, err)
	}
	defer rows.Close()

	var out []*entity.TextRow
	if err := entsql.ScanSlice(rows, &out); err != nil {
		r.log.Error("error scanning ocr_data rows", "err", err)
		return nil, common.NewAppError(common.CodeRead, "scan "+TableTextRows, common.ErrRead, err)
	}
	r.log.Debug("ocr_data rows fetched", "count", len(out))
	return out, nil
}

func (r *textRowRepo) Count(ctx context.Context) (int, error) {
	b := entsql.Dialect(r.store.dialect)
	query, args := b.Select().Count().From(b.Table(TableTextRows)).Query()

	var rows entsql.Rows
	if err := r.store.drv.Query(ctx, query, args, &rows); err != nil {
		r.log.Error("error counting ocr_data rows", "err", err)
		return 0, common.NewAppError(common.CodeRead, "count "+TableTextRows, common.ErrRead, err)
	}
	defer rows.Close()

	n, err := entsql.ScanInt(rows)
	if err != nil {
		return 0, common.NewAppError(common.CodeRead, "scan count", common.ErrRead, err)
	}
	return n, nil
}
