package server

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies database migrations from dir against dsn.
func Migrate(dir string, dsn string, direction string, steps int) error {
	if dir == "" {
		dir = "file://migrations"
	}
	m, err := migrate.New(dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	run := func() error {
		switch direction {
		case "up":
			if steps > 0 {
				return m.Steps(steps)
			}
			return m.Up()
		case "down":
			if steps > 0 {
				return m.Steps(-steps)
			}
			return m.Down()
		default:
			return fmt.Errorf("unknown direction: %s", direction)
		}
	}
	if err := run(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
