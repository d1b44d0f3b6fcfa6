package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mohammad-safakhou/researchflow/migrations"
)

// Migrate applies the Postgres schema. dir is a migrate source URL such as
// file://migrations; an empty dir uses the migrations embedded in the binary.
// steps == 0 applies everything in direction. Running with nothing to apply is
// not an error.
func Migrate(dir, dsn, direction string, steps int) error {
	m, err := newMigrate(dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return fmt.Errorf("unknown direction: %s", direction)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func newMigrate(dir, dsn string) (*migrate.Migrate, error) {
	if dir != "" {
		return migrate.New(dir, dsn)
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", src, dsn)
}
