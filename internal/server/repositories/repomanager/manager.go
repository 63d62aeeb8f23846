package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophjournal/internal/dbx"
	"github.com/dmitrijs2005/gophjournal/internal/server/repositories/entries"
	"github.com/dmitrijs2005/gophjournal/internal/server/repositories/security"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Security(db dbx.DBTX) security.Repository
	Entries(db dbx.DBTX) entries.Repository
}
