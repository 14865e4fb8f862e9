package database

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Upsert inserts row, or overwrites updateColumns on the existing row that
// shares the conflict key. conflict maps the unique column names to their
// values. On return row holds the stored record, including the primary key of
// a pre-existing row.
func Upsert(ctx context.Context, db *gorm.DB, row interface{}, conflict map[string]interface{}, updateColumns []string) error {
	if len(conflict) == 0 {
		return errors.New("upsert requires a conflict key")
	}

	columns := make([]clause.Column, 0, len(conflict))
	for _, name := range sortedKeys(conflict) {
		columns = append(columns, clause.Column{Name: name})
	}

	onConflict := clause.OnConflict{Columns: columns}
	if len(updateColumns) == 0 {
		onConflict.DoNothing = true
	} else {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	}

	if err := db.WithContext(ctx).Clauses(onConflict).Create(row).Error; err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	// Reload into a fresh value: the primary key generated for row is not the
	// stored one when the conflict path was taken.
	rv := reflect.ValueOf(row)
	if rv.Kind() != reflect.Ptr {
		return errors.New("upsert requires a pointer")
	}
	fresh := reflect.New(rv.Elem().Type())
	if err := db.WithContext(ctx).Where(conflict).First(fresh.Interface()).Error; err != nil {
		return fmt.Errorf("upsert reload: %w", err)
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

// Select loads rows matching equality filters into dest, a pointer to a slice.
// projection limits the loaded columns when non-empty.
func Select(ctx context.Context, db *gorm.DB, dest interface{}, filters map[string]interface{}, projection ...string) error {
	q := db.WithContext(ctx)
	if len(projection) > 0 {
		q = q.Select(projection)
	}
	if len(filters) > 0 {
		q = q.Where(filters)
	}
	if err := q.Find(dest).Error; err != nil {
		return fmt.Errorf("select: %w", err)
	}
	return nil
}

// Patch applies fields to every row of model's table matching filters and
// returns the number of affected rows. Filters are mandatory so a patch can
// never turn into a table-wide update.
func Patch(ctx context.Context, db *gorm.DB, model interface{}, filters map[string]interface{}, fields map[string]interface{}) (int64, error) {
	if len(filters) == 0 {
		return 0, errors.New("patch requires filters")
	}
	res := db.WithContext(ctx).Model(model).Where(filters).Updates(fields)
	if res.Error != nil {
		return 0, fmt.Errorf("patch: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
