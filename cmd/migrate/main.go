// Command migrate applies or inspects the embedded schema migrations. Without
// -url it connects with the same config.toml and TAWARRUQ_DB_* settings the
// server reads.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"

	"github.com/JaimeStill/tawarruq/internal/config"
	"github.com/JaimeStill/tawarruq/internal/schema"
	"github.com/JaimeStill/tawarruq/pkg/database"
)

const usage = `usage: migrate [-url URL] <command>

commands:
  up         apply all pending migrations
  down       revert all migrations
  steps N    apply N migrations, or revert -N
  version    print the current version
  force N    set the version without running migrations (clears dirty)
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("migrate", flag.ContinueOnError)
	flags.SetOutput(out)
	flags.Usage = func() { fmt.Fprint(out, usage) }
	rawURL := flags.String("url", "", "migration URL, postgres://... or sqlite://path")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("missing command")
	}

	driver, url, err := target(*rawURL)
	if err != nil {
		return err
	}

	src, err := schema.Source(driver)
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer m.Close()

	cmd, operand := flags.Arg(0), flags.Arg(1)
	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps", "force":
		n, convErr := strconv.Atoi(operand)
		if convErr != nil {
			return fmt.Errorf("%s needs an integer, got %q", cmd, operand)
		}
		if cmd == "steps" {
			err = m.Steps(n)
		} else {
			err = m.Force(n)
		}
	case "version":
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", cmd, err)
	}

	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		fmt.Fprintln(out, "version: none")
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		fmt.Fprintf(out, "version: %d dirty: %t\n", v, dirty)
	}
	return nil
}

// target resolves the driver and golang-migrate URL, either from an explicit
// URL or from the loaded configuration.
func target(rawURL string) (driver, url string, err error) {
	if rawURL != "" {
		if strings.HasPrefix(rawURL, "sqlite://") {
			return database.DriverSQLite, rawURL, nil
		}
		return database.DriverPostgres, rawURL, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return "", "", err
	}
	db := cfg.Database
	if db.Driver == database.DriverSQLite {
		return db.Driver, "sqlite://" + db.Path, nil
	}
	return db.Driver, db.Dsn(), nil
}
