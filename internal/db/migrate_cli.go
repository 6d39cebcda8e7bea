package db

import (
	"fmt"
	"io"
	"io/fs"
	"strconv"

	"github.com/banshee-data/treecrown/internal/monitoring"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 || args[0] == "help" {
		PrintMigrateHelp(out)
		if len(args) < 1 {
			return fmt.Errorf("migrate: missing action")
		}
		return nil
	}

	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	migrations := MigrationsFS()

	switch action := args[0]; action {
	case "up":
		return handleMigrateUp(database, migrations, out)
	case "down":
		return handleMigrateDown(database, migrations, out)
	case "status":
		return handleMigrateStatus(database, migrations, out)
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: treecrown migrate force <version_number>")
		}
		return handleMigrateForce(database, migrations, args[1], out)
	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
}

func handleMigrateUp(database *DB, migrations fs.FS, out io.Writer) error {
	monitoring.Logger().Info().Msg("running migrations")
	if err := database.MigrateUp(migrations); err != nil {
		return err
	}
	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "All migrations applied. Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func handleMigrateDown(database *DB, migrations fs.FS, out io.Writer) error {
	monitoring.Logger().Info().Msg("rolling back one migration")
	if err := database.MigrateDown(migrations); err != nil {
		return err
	}
	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Migration rolled back. Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func handleMigrateStatus(database *DB, migrations fs.FS, out io.Writer) error {
	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	latest, err := LatestMigrationVersion(migrations)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", version)
	fmt.Fprintf(out, "Latest version: %d\n", latest)
	fmt.Fprintf(out, "Dirty: %v\n", dirty)
	switch {
	case dirty:
		fmt.Fprintln(out, "WARNING: a migration failed mid-execution; inspect the database and use 'migrate force'.")
	case version < latest:
		fmt.Fprintf(out, "%d migration(s) pending; run 'migrate up'.\n", latest-version)
	default:
		fmt.Fprintln(out, "Schema is up to date.")
	}
	return nil
}

func handleMigrateForce(database *DB, migrations fs.FS, arg string, out io.Writer) error {
	version, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", arg, err)
	}
	if err := database.MigrateForce(migrations, version); err != nil {
		return err
	}
	fmt.Fprintf(out, "Forced migration version to %d\n", version)
	return nil
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: treecrown migrate <action> [args]

Actions:
  up              Apply all pending migrations
  down            Roll back the most recent migration
  status          Show current and latest schema versions
  force <version> Mark the schema as <version> without running migrations
  help            Show this message
`)
}
