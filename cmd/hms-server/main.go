package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/availability"
	"github.com/hms/hms/internal/domain/directory"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital availability and booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(slotsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrations.FS, schema)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS, schema).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			printMigrationStatus(os.Stdout, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

// slotsCmd derives slots straight from the database, for checking what the
// API would offer without going through authentication.
func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the derived slots of a doctor at a hospital",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorFlag, _ := cmd.Flags().GetString("doctor")
			hospitalFlag, _ := cmd.Flags().GetString("hospital")
			dateFlag, _ := cmd.Flags().GetString("date")
			days, _ := cmd.Flags().GetInt("days")

			doctorID, err := uuid.Parse(doctorFlag)
			if err != nil {
				return fmt.Errorf("--doctor must be a UUID")
			}
			hospitalID, err := uuid.Parse(hospitalFlag)
			if err != nil {
				return fmt.Errorf("--hospital must be a UUID")
			}
			date, err := time.Parse(time.DateOnly, dateFlag)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			dir := directory.NewService(directory.NewDoctorRepoPG(pool), directory.NewHospitalRepoPG(pool))
			svc := availability.NewService(availability.NewRuleRepoPG(pool),
				availability.NewBookingCounterPG(pool), dir, db.NewTransactor(pool), cfg.AvailabilityOverlapPolicy, nil)

			out, err := svc.ListSlots(ctx, doctorID, hospitalID, date, days)
			if err != nil {
				return err
			}
			printSlots(os.Stdout, out)
			return nil
		},
	}
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().String("hospital", "", "Hospital id")
	cmd.Flags().String("date", time.Now().Format(time.DateOnly), "First date (YYYY-MM-DD)")
	cmd.Flags().Int("days", availability.DefaultDays, "Number of consecutive days")
	_ = cmd.MarkFlagRequired("doctor")
	_ = cmd.MarkFlagRequired("hospital")
	return cmd
}

var weekdays = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func printSlots(w io.Writer, days []availability.DaySlots) {
	fmt.Fprintf(w, "%-10s %-3s %-5s %-5s %-6s %-8s %s\n", "DATE", "DAY", "START", "END", "BOOKED", "CAPACITY", "AVAILABLE")
	for _, d := range days {
		if len(d.Slots) == 0 {
			fmt.Fprintf(w, "%-10s %-3s (no availability)\n", d.Date, weekdays[d.DayOfWeek])
			continue
		}
		for _, s := range d.Slots {
			avail := "no"
			if s.IsAvailable {
				avail = "yes"
			}
			fmt.Fprintf(w, "%-10s %-3s %-5s %-5s %-6d %-8d %s\n",
				d.Date, weekdays[d.DayOfWeek], s.StartTime, s.EndTime, s.BookedCount, s.MaxPatients, avail)
		}
	}
}
