package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields flattens err into structured log fields: the message, the typed
// code when present, each wrapped layer, and postgres diagnostics from either
// the pgx or lib/pq driver.
func LogFields(err error) map[string]any {
	if err == nil {
		return nil
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = typed.Code()
	}

	var chain []string
	for layer := err; layer != nil; layer = stdErrors.Unwrap(layer) {
		chain = append(chain, fmt.Sprintf("%T", layer))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	var (
		pgxErr *pgconn.PgError
		pqErr  *pq.Error
		pg     map[string]string
	)
	switch {
	case stdErrors.As(err, &pgxErr):
		pg = map[string]string{
			"pg_code":       pgxErr.Code,
			"pg_constraint": pgxErr.ConstraintName,
			"pg_table":      pgxErr.TableName,
			"pg_column":     pgxErr.ColumnName,
			"pg_detail":     pgxErr.Detail,
		}
	case stdErrors.As(err, &pqErr):
		pg = map[string]string{
			"pg_code":       string(pqErr.Code),
			"pg_constraint": pqErr.Constraint,
			"pg_table":      pqErr.Table,
			"pg_column":     pqErr.Column,
			"pg_detail":     pqErr.Detail,
		}
	}
	for key, value := range pg {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
