package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type index struct {
	model   interface{}
	name    string
	columns []string
}

// Migrate creates the schema. It is idempotent.
func Migrate(ctx context.Context, db bun.IDB) error {
	models := []interface{}{
		(*User)(nil),
		(*Agent)(nil),
		(*Listing)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}

	indexes := []index{
		{(*Listing)(nil), "listings_owner_idx", []string{"owner_id"}},
		{(*Listing)(nil), "listings_status_city_idx", []string{"status", "city"}},
		{(*Listing)(nil), "listings_agent_idx", []string{"agent_id"}},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}

	return nil
}
