package repository

import "database/sql"

// nullInt64Ptr はsql.NullInt64をポインタに変換する。
func nullInt64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// nullIntPtr はsql.NullInt32をintポインタに変換する。
func nullIntPtr(n sql.NullInt32) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int32)
	return &v
}

// int64PtrValue はポインタをSQLパラメータに変換する。nilはNULLになる。
func int64PtrValue(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// intPtrValue はintポインタをSQLパラメータに変換する。nilはNULLになる。
func intPtrValue(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}
