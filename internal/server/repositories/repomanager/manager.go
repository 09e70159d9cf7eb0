package repomanager

import (
	"context"
	"database/sql"

	"github.com/love-developer/eras/internal/dbx"
	"github.com/love-developer/eras/internal/server/repositories/capsules"
	"github.com/love-developer/eras/internal/server/repositories/media"
	"github.com/love-developer/eras/internal/server/repositories/sessions"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Media(db dbx.DBTX) media.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Capsules(db dbx.DBTX) capsules.Repository
}
