package students

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	entrypoint "github.com/louisbranch/students/internal/platform/cmd"
	"github.com/louisbranch/students/internal/platform/config"
	"github.com/louisbranch/students/internal/services/roster/domain"
	"github.com/louisbranch/students/internal/services/roster/present"
	"github.com/louisbranch/students/internal/services/roster/storage"
	"github.com/louisbranch/students/internal/services/roster/storage/sqlite"
)

const tracerName = "github.com/louisbranch/students/internal/cmd/students"

// Run executes the command line args against cfg, writing results and usage
// text to out and log output to errOut.
func Run(ctx context.Context, cfg Config, args []string, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if args == nil {
		args = []string{}
	}
	logger, err := config.NewLogger(errOut, cfg.LogLevel)
	if err != nil {
		return err
	}

	options := entrypoint.RunOptions{Telemetry: cfg.Telemetry, Logger: logger}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceStudents, options, func(ctx context.Context) error {
		root := NewCommand(cfg, logger)
		root.SetArgs(args)
		root.SetOut(out)
		root.SetErr(errOut)
		cmd, err := root.ExecuteContextC(ctx)
		if err != nil && isUnknownCommand(err) {
			fmt.Fprint(cmd.OutOrStderr(), cmd.UsageString())
		}
		return err
	})
}

// isUnknownCommand reports whether err is cobra's unknown subcommand error,
// which it returns before any usage text is printed.
func isUnknownCommand(err error) bool {
	return strings.HasPrefix(err.Error(), "unknown command")
}

// app carries the state shared by every subcommand.
type app struct {
	dbPath string
	logger *slog.Logger
	tracer trace.Tracer
}

// NewCommand returns the root students command with add, display and find.
func NewCommand(cfg Config, logger *slog.Logger) *cobra.Command {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &app{
		dbPath: cfg.DBPath,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}

	root := &cobra.Command{
		Use:           "students",
		Short:         "Keep a register of students, their groups and their marks",
		Version:       Version,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")
	root.PersistentFlags().StringVar(&a.dbPath, "db", a.dbPath, "The database file name")

	root.AddCommand(a.addCommand(), a.displayCommand(), a.findCommand())
	return root
}

func (a *app) addCommand() *cobra.Command {
	var name, group, marks string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Flags are valid by now; later failures skip the usage text.
			cmd.SilenceUsage = true
			parsed, err := domain.ParseMarks(marks)
			if err != nil {
				return err
			}
			return a.withSpan(cmd.Context(), "students.add", func(ctx context.Context, span trace.Span) error {
				return a.withStore(ctx, func(store storage.RosterStore) error {
					student, err := store.AddStudent(ctx, domain.Record{Name: name, Group: group, Marks: parsed})
					if err != nil {
						return fmt.Errorf("add student: %w", err)
					}
					span.SetAttributes(
						attribute.Int64("students.student_id", student.ID),
						attribute.Int64("students.group_id", student.Group.ID),
					)
					a.logger.Info("student added",
						"student_id", student.ID,
						"group_id", student.Group.ID,
						"marks", len(student.Marks),
					)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "The student's name")
	cmd.Flags().StringVarP(&group, "group", "g", "", "The student's group")
	cmd.Flags().StringVarP(&marks, "marks", "m", "", "The student's marks, comma separated")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("marks")
	return cmd
}

func (a *app) displayCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "display",
		Short: "Display all students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return a.withSpan(cmd.Context(), "students.display", func(ctx context.Context, span trace.Span) error {
				return a.withStore(ctx, func(store storage.RosterStore) error {
					records, err := store.ListStudents(ctx)
					if err != nil {
						return err
					}
					span.SetAttributes(attribute.Int("students.count", len(records)))
					a.logger.Debug("students listed", "count", len(records))
					return render(cmd.OutOrStdout(), records, asJSON)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print students as JSON")
	return cmd
}

func (a *app) findCommand() *cobra.Command {
	var (
		asJSON     bool
		minAverage float64
	)
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find the students in good standing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return a.withSpan(cmd.Context(), "students.find", func(ctx context.Context, span trace.Span) error {
				span.SetAttributes(attribute.Float64("students.min_average", minAverage))
				return a.withStore(ctx, func(store storage.RosterStore) error {
					records, err := store.FindStudents(ctx, minAverage)
					if err != nil {
						return err
					}
					span.SetAttributes(attribute.Int("students.count", len(records)))
					a.logger.Debug("students found", "count", len(records), "min_average", minAverage)
					return render(cmd.OutOrStdout(), records, asJSON)
				})
			})
		},
	}
	cmd.Flags().Float64Var(&minAverage, "min-average", domain.GoodStandingAverage, "Lowest mark average to include")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print students as JSON")
	return cmd
}

// withStore opens the roster for the duration of fn and always closes it.
func (a *app) withStore(ctx context.Context, fn func(storage.RosterStore) error) (err error) {
	path, err := a.storePath()
	if err != nil {
		return fmt.Errorf("open roster: %w", err)
	}
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open roster: %w", err)
	}
	if applied := store.AppliedMigrations(); len(applied) > 0 {
		a.logger.Debug("schema migrated", "path", path, "migrations", applied)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close roster: %w", closeErr))
		}
	}()
	return fn(store)
}

// storePath returns the configured roster file, falling back to the per-user
// default only when neither --db nor STUDENTS_DB_PATH is set.
func (a *app) storePath() (string, error) {
	if strings.TrimSpace(a.dbPath) != "" {
		return a.dbPath, nil
	}
	path, err := DefaultDBPath()
	if err != nil {
		return "", fmt.Errorf("set --db or STUDENTS_DB_PATH: %w", err)
	}
	return path, nil
}

func (a *app) withSpan(ctx context.Context, name string, fn func(context.Context, trace.Span) error) error {
	ctx, span := a.tracer.Start(ctx, name)
	defer span.End()

	if err := fn(ctx, span); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func render(w io.Writer, records []domain.Record, asJSON bool) error {
	if asJSON {
		return present.WriteJSON(w, records)
	}
	return present.WriteTable(w, records)
}
