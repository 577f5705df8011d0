package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate applies a row-level update lock on dialects that support it.
// sqlite serializes writers on its own and rejects FOR UPDATE, so the clause
// is elided there.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// ForUpdateOf locks only the named table's rows in a join query, so shared
// reference rows on the other side of the join stay unlocked.
func ForUpdateOf(tx *gorm.DB, table string) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{
			Strength: "UPDATE",
			Table:    clause.Table{Name: table},
		})
	}
	return tx
}
