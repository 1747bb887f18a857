// Package migrations embeds the goose schema migrations of the SQL user stores.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// SQLite returns the migrations of the SQLite store.
func SQLite() fs.FS {
	return sub("sqlite")
}

// Postgres returns the migrations of the Postgres store.
func Postgres() fs.FS {
	return sub("postgres")
}

func sub(dir string) fs.FS {
	fsys, err := fs.Sub(files, dir)
	if err != nil {
		panic(err) // dir is embedded above
	}

	return fsys
}
