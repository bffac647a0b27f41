package models

import "github.com/google/uuid"

// ensureID assigns a client-side UUID so inserts behave the same on Postgres
// (which would otherwise default via gen_random_uuid) and sqlite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
