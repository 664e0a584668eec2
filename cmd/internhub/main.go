package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/emilianohg/internhub/internal/aggregate"
	"github.com/emilianohg/internhub/internal/api"
	"github.com/emilianohg/internhub/internal/config"
	"github.com/emilianohg/internhub/internal/db"
	"github.com/emilianohg/internhub/internal/export"
	"github.com/emilianohg/internhub/internal/logging"
	"github.com/emilianohg/internhub/internal/models"
	"github.com/emilianohg/internhub/internal/mutation"
	"github.com/emilianohg/internhub/internal/repository"
	"github.com/emilianohg/internhub/internal/tui"
	"github.com/emilianohg/internhub/internal/tui/screens"
)

// env is what every command needs once config and the database are open.
type env struct {
	cfg     *config.Config
	db      *sql.DB
	logger  *slog.Logger
	loc     *time.Location
	timeout time.Duration
	closers []io.Closer
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	loc, _ := cfg.Location()
	timeout, _ := cfg.Timeout()

	logPath, err := config.ErrorLogPath()
	if err != nil {
		return nil, err
	}
	logger, logFile, err := logging.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}

	database, err := db.OpenAndMigrate(cfg.DatabasePath)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &env{
		cfg:     cfg,
		db:      database,
		logger:  logger,
		loc:     loc,
		timeout: timeout,
		closers: []io.Closer{database, logFile},
	}, nil
}

func (e *env) Close() {
	for _, c := range e.closers {
		c.Close()
	}
}

func (e *env) aggregator() *aggregate.Aggregator {
	return aggregate.New(aggregate.SourcesFromDB(e.db), e.loc, aggregate.WithTimeout(e.timeout))
}

// service writes notifications rows for every event and mirrors each event
// into the diagnostics log.
func (e *env) service() *mutation.Service {
	sink := mutation.Fanout{
		mutation.NewNotificationSink(repository.NewNotificationRepo(e.db)),
		mutation.SinkFunc(func(ctx context.Context, ev mutation.Event) error {
			e.logger.Info("event",
				"id", ev.ID,
				"type", ev.Type,
				"recipient", ev.RecipientType+":"+ev.RecipientID,
				"resource", fmt.Sprintf("%s:%d", ev.ResourceType, ev.ResourceID),
			)
			return nil
		}),
	}
	return mutation.New(mutation.StoreFromDB(e.db), sink, e.logger,
		mutation.WithTimeout(e.timeout),
		mutation.WithLocation(e.loc),
	)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

var rootCmd = &cobra.Command{
	Use:   "internhub",
	Short: "Internship matching dashboard",
	Long:  `internhub manages companies, jobs, applicants, interviews and feedback for an internship platform.`,
	Run: func(cmd *cobra.Command, args []string) {
		e, err := setup()
		if err != nil {
			fail("%v", err)
		}
		defer e.Close()

		deps := screens.Deps{
			Reader:    e.aggregator(),
			Writer:    e.service(),
			Companies: repository.NewCompanyRepo(e.db),
			Jobs:      repository.NewJobRepo(e.db),
			Templates: repository.NewFeedbackTemplateRepo(e.db),
			Logger:    e.logger,
			Location:  e.loc,
			PageSize:  e.cfg.PageSize,
			Timeout:   e.timeout,
			ExportDir: e.cfg.ExportsOutput,
		}
		if err := tui.Run(deps); err != nil {
			logging.Error(e.logger, "tui", err)
			fail("%v", err)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Run: func(cmd *cobra.Command, args []string) {
		e, err := setup()
		if err != nil {
			fail("%v", err)
		}
		defer e.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = e.cfg.ListenAddr
		}

		srv := api.New(e.aggregator(), e.service(), repository.NewFeedbackTemplateRepo(e.db), e.logger, api.Options{
			Location:   e.loc,
			PageSize:   e.cfg.PageSize,
			WriteRate:  e.cfg.WriteRate,
			WriteBurst: e.cfg.WriteBurst,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Listening on %s\n", addr)
		if err := srv.Run(ctx, addr); err != nil {
			logging.Error(e.logger, "serve", err, "addr", addr)
			fail("%v", err)
		}
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <applicants|feedbacks|students>",
	Short: "Write a list to a CSV, JSON or XLSX file",
	Long: `Export a list to the exports directory.

Examples:
  internhub export students
  internhub export applicants --company 3
  internhub export feedbacks --company 3 --format xlsx`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"applicants", "feedbacks", "students"},
	Run: func(cmd *cobra.Command, args []string) {
		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := export.ParseFormat(formatFlag)
		if err != nil {
			fail("%v", err)
		}
		companyID, _ := cmd.Flags().GetInt64("company")
		if args[0] != "students" && companyID <= 0 {
			fail("--company is required for %s", args[0])
		}

		e, err := setup()
		if err != nil {
			fail("%v", err)
		}
		defer e.Close()

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = e.cfg.ExportsOutput
		}

		ctx := context.Background()
		agg := e.aggregator()
		var table export.Table
		switch args[0] {
		case "applicants":
			rows, err := agg.Applicants(ctx, aggregate.ApplicantQuery{CompanyID: companyID})
			if err != nil {
				logging.Error(e.logger, "export applicants", err)
				fail("%v", err)
			}
			table = export.Applicants(rows)
		case "feedbacks":
			rows, err := agg.Feedbacks(ctx, companyID)
			if err != nil {
				logging.Error(e.logger, "export feedbacks", err)
				fail("%v", err)
			}
			table = export.Feedbacks(rows)
		case "students":
			rows, err := agg.Students(ctx)
			if err != nil {
				logging.Error(e.logger, "export students", err)
				fail("%v", err)
			}
			table = export.Students(rows)
		default:
			fail("unknown list %q (expected applicants, feedbacks or students)", args[0])
		}

		path, err := export.WriteFile(out, table, format, time.Now().In(e.loc))
		if err != nil {
			logging.Error(e.logger, "export", err)
			fail("%v", err)
		}
		fmt.Printf("Exported %d rows to %s\n", len(table.Rows), path)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [status]",
	Short: "Apply pending migrations, or show migration status",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fail("loading config: %v", err)
		}
		database, err := db.Open(cfg.DatabasePath)
		if err != nil {
			fail("opening database: %v", err)
		}
		defer database.Close()

		if len(args) == 0 {
			if err := db.RunMigrations(database); err != nil {
				fail("running migrations: %v", err)
			}
		} else if args[0] != "status" {
			fail("unknown argument %q", args[0])
		}

		status, err := db.GetMigrationStatus(database)
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("Database: %s\n", cfg.DatabasePath)
		fmt.Printf("Version: %d of %d\n", status.CurrentVersion, status.LatestVersion)
		if status.Dirty {
			fmt.Println("State: dirty (a migration failed part way)")
		} else if status.Pending {
			fmt.Println("State: pending migrations")
		} else {
			fmt.Println("State: up to date")
		}
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage job postings",
}

var jobsAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a draft job for a company",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		companyID, _ := cmd.Flags().GetInt64("company")
		if companyID <= 0 {
			fail("--company is required")
		}
		title := strings.TrimSpace(args[0])
		if title == "" {
			fail("title must not be empty")
		}

		e, err := setup()
		if err != nil {
			fail("%v", err)
		}
		defer e.Close()

		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		job, err := repository.NewJobRepo(e.db).Create(ctx, companyID, title, models.JobDraft, time.Now())
		if err != nil {
			logging.Error(e.logger, "create job", err, "company_id", companyID)
			fail("%v", err)
		}
		fmt.Printf("Created job #%d %q (draft). Publish it from the jobs screen.\n", job.ID, job.Title)
	},
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage feedback templates",
}

var templatesAddCmd = &cobra.Command{
	Use:   "add <name> <category>...",
	Short: "Create a feedback template with rating categories",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		companyID, _ := cmd.Flags().GetInt64("company")
		if companyID <= 0 {
			fail("--company is required")
		}

		e, err := setup()
		if err != nil {
			fail("%v", err)
		}
		defer e.Close()

		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		t, err := repository.NewFeedbackTemplateRepo(e.db).Create(ctx, companyID, args[0], args[1:])
		if err != nil {
			logging.Error(e.logger, "create template", err, "company_id", companyID)
			fail("%v", err)
		}
		fmt.Printf("Created template #%d %q: %s\n", t.ID, t.Name, strings.Join(t.Categories, ", "))
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default: listen_addr from config)")

	exportCmd.Flags().StringP("format", "f", "csv", "Output format: csv, json or xlsx")
	exportCmd.Flags().Int64P("company", "c", 0, "Company id (applicants and feedbacks)")
	exportCmd.Flags().StringP("out", "o", "", "Output directory (default: exports_output from config)")

	jobsAddCmd.Flags().Int64P("company", "c", 0, "Company id")
	jobsCmd.AddCommand(jobsAddCmd)

	templatesAddCmd.Flags().Int64P("company", "c", 0, "Company id")
	templatesCmd.AddCommand(templatesAddCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(templatesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
