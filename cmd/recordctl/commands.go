package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	store "github.com/likearthian/recordstore"
	"github.com/spf13/cobra"
)

var (
	config  store.Config
	verbose bool
)

func envOr(key string, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	return def
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// withConn opens a connection for the duration of fn.
func withConn(cmd *cobra.Command, fn func(ctx context.Context, conn *store.Conn) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	conn, err := store.Connect(ctx, config, store.WithLogger(newLogger()))
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(ctx, conn)
}

var rootCmd = &cobra.Command{
	Use:   "recordctl",
	Short: "Read and write table rows as generic records",
	Long: `recordctl finds, lists, creates, updates and deletes rows of any table
through a generic record. Connection flags fall back to RECORDSTORE_* environment
variables.`,
	SilenceUsage: true,
}

var findCmd = &cobra.Command{
	Use:   "find [table] [id]",
	Short: "Print the row with the given id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConn(cmd, func(ctx context.Context, conn *store.Conn) error {
			return runFind(ctx, conn, cmd.OutOrStdout(), args[0], args[1])
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list [table]",
	Short: "Print every row of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt64("offset")
		sorter, _ := cmd.Flags().GetStringSlice("sort")
		return withConn(cmd, func(ctx context.Context, conn *store.Conn) error {
			return runList(ctx, conn, cmd.OutOrStdout(), args[0],
				store.WithLimit(limit), store.WithOffset(offset), store.WithSorter(sorter...))
		})
	},
}

var whereCmd = &cobra.Command{
	Use:   "where [table] [field] [value]",
	Short: "Print the rows whose field equals value",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		first, _ := cmd.Flags().GetBool("first")
		return withConn(cmd, func(ctx context.Context, conn *store.Conn) error {
			return runWhere(ctx, conn, cmd.OutOrStdout(), args[0], args[1], args[2], first)
		})
	},
}

var rawCmd = &cobra.Command{
	Use:   "raw [query]",
	Short: "Run a raw SELECT and print its rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConn(cmd, func(ctx context.Context, conn *store.Conn) error {
			return runRaw(ctx, conn, cmd.OutOrStdout(), args[0])
		})
	},
}

var createCmd = &cobra.Command{
	Use:   "create [table] [field=value]...",
	Short: "Insert a row and print its id",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		genID, _ := cmd.Flags().GetBool("uuid")
		return withConn(cmd, func(ctx context.Context, conn *store.Conn) error {
			return runCreate(ctx, conn, cmd.OutOrStdout(), args[0], args[1:], genID)
		})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [table] [id] [field=value]...",
	Short: "Update fields of the row with the given id",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConn(cmd, func(ctx context.Context, conn *store.Conn) error {
			return runUpdate(ctx, conn, args[0], args[1], args[2:])
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [table] [id]",
	Short: "Delete the row with the given id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConn(cmd, func(ctx context.Context, conn *store.Conn) error {
			return runDelete(ctx, conn, args[0], args[1])
		})
	},
}

var columnsCmd = &cobra.Command{
	Use:   "columns [table]",
	Short: "Print the columns of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConn(cmd, func(ctx context.Context, conn *store.Conn) error {
			return runColumns(ctx, conn, cmd.OutOrStdout(), args[0])
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve table rows over HTTP as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		return withConn(cmd, func(ctx context.Context, conn *store.Conn) error {
			return runServe(ctx, conn, addr)
		})
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&config.Driver, "driver", envOr("RECORDSTORE_DRIVER", store.DriverMySQL), "database driver: mysql, pgx, postgres or sqlite3")
	flags.StringVar(&config.Host, "host", envOr("RECORDSTORE_HOST", ""), "database host (default localhost)")
	flags.StringVar(&config.Port, "port", envOr("RECORDSTORE_PORT", ""), "database port (default per driver)")
	flags.StringVar(&config.Database, "database", envOr("RECORDSTORE_DATABASE", ""), "database name, or file path for sqlite3")
	flags.StringVar(&config.User, "user", envOr("RECORDSTORE_USER", ""), "database user")
	flags.StringVar(&config.Password, "password", envOr("RECORDSTORE_PASSWORD", ""), "database password")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log executed statements")

	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(whereCmd)
	rootCmd.AddCommand(rawCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(columnsCmd)
	rootCmd.AddCommand(serveCmd)

	listCmd.Flags().Int("limit", 0, "maximum number of rows")
	listCmd.Flags().Int64("offset", 0, "rows to skip")
	listCmd.Flags().StringSlice("sort", nil, "sort fields, prefix with - for descending")
	whereCmd.Flags().Bool("first", false, "print only the first matching row")
	createCmd.Flags().Bool("uuid", false, "generate a UUID id instead of leaving it to the database")
	serveCmd.Flags().String("addr", envOr("RECORDSTORE_ADDR", ":8080"), "listen address")
}

func runFind(ctx context.Context, backend store.Backend, out io.Writer, table string, id string) error {
	m := store.NewDynamicModel()
	m.SetConnection(backend, table)

	found, err := m.Find(ctx, id)
	if err != nil {
		return err
	}

	if !found {
		return fmt.Errorf("no row in %s with id %s. %w", table, id, store.ErrKeynotFound)
	}

	row := m.Attributes()
	writeRow(out, row, m.Columns())
	return nil
}

func runList(ctx context.Context, backend store.Backend, out io.Writer, table string, options ...store.QueryOption) error {
	m := store.NewDynamicModel()
	m.SetConnection(backend, table)

	rows, err := m.GetAll(ctx, options...)
	if err != nil {
		return err
	}

	writeRows(out, rows)
	return nil
}

func runWhere(ctx context.Context, backend store.Backend, out io.Writer, table string, field string, value string, first bool) error {
	m := store.NewDynamicModel()
	m.SetConnection(backend, table)

	q := m.Where(field, value)
	if !first {
		rows, err := q.GetAll(ctx)
		if err != nil {
			return err
		}

		writeRows(out, rows)
		return nil
	}

	row, ok, err := q.First(ctx)
	if err != nil || !ok {
		return err
	}

	writeRow(out, row, nil)
	return nil
}

func runRaw(ctx context.Context, backend store.Backend, out io.Writer, query string) error {
	m := store.NewDynamicModel()
	m.SetConnection(backend, "")

	rows, err := m.Raw(query).GetAll(ctx)
	if err != nil {
		return err
	}

	writeRows(out, rows)
	return nil
}

func runCreate(ctx context.Context, backend store.Backend, out io.Writer, table string, assignments []string, genID bool) error {
	m := store.NewDynamicModel()
	m.SetConnection(backend, table)
	if genID {
		m.Set("id", uuid.NewString())
	}
	if err := setAssignments(m, assignments); err != nil {
		return err
	}

	if err := m.Create(ctx); err != nil {
		return err
	}

	fmt.Fprintln(out, m.Get("id"))
	return nil
}

func runUpdate(ctx context.Context, backend store.Backend, table string, id string, assignments []string) error {
	m := store.NewDynamicModel()
	m.SetConnection(backend, table)
	m.Set("id", id)
	if err := setAssignments(m, assignments); err != nil {
		return err
	}

	return m.Update(ctx)
}

func runDelete(ctx context.Context, backend store.Backend, table string, id string) error {
	m := store.NewDynamicModel()
	m.SetConnection(backend, table)
	m.Set("id", id)
	return m.Remove(ctx)
}

func runColumns(ctx context.Context, conn *store.Conn, out io.Writer, table string) error {
	cols, err := conn.Columns(ctx, table)
	if err != nil {
		return err
	}

	for _, col := range cols {
		flags := ""
		if col.PrimaryKey {
			flags += " primary"
		}
		if col.NotNull {
			flags += " notnull"
		}
		fmt.Fprintf(out, "%s\t%s%s\n", col.Name, col.DataType, flags)
	}

	return nil
}

// runServe serves until ctx is done or the process is interrupted.
func runServe(ctx context.Context, backend store.Backend, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(backend),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	newLogger().Info("serving records", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func setAssignments(m *store.DynamicModel, assignments []string) error {
	for _, a := range assignments {
		field, value, ok := strings.Cut(a, "=")
		if !ok || field == "" {
			return fmt.Errorf("invalid assignment %q, expecting field=value", a)
		}
		m.Set(field, value)
	}

	return nil
}

func writeRows(out io.Writer, rows []store.Row) {
	for _, row := range rows {
		writeRow(out, row, nil)
	}
}

// writeRow prints row as tab separated field=value pairs, in order when
// given, otherwise sorted by field.
func writeRow(out io.Writer, row store.Row, order []string) {
	if len(order) == 0 {
		for k := range row {
			order = append(order, k)
		}
		sort.Strings(order)
	}

	parts := make([]string, 0, len(order))
	for _, k := range order {
		if v, ok := row[k]; ok {
			parts = append(parts, k+"="+v)
		}
	}

	fmt.Fprintln(out, strings.Join(parts, "\t"))
}
