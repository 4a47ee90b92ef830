package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kanban/internal/api"
	"kanban/internal/app"
	"kanban/internal/board"
	"kanban/internal/config"
	"kanban/internal/domain"
	"kanban/internal/format"
	"kanban/internal/logging"
	"kanban/internal/server"
)

const effectGrace = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "kb",
	Short: "Kanban board client",
	Long: `kb drives a kanban board held by a remote board API.
- Board: columns in display order, each listing its tasks in order.
- Tasks: live in exactly one column (their status), carry tags, comments and tracked time.
- Every change is applied to the local board first and mirrored to the API; a failed
  remote call is logged and the local board is kept.
- A snapshot of the board and a journal of applied operations are kept in the workspace
  (.kanban/kanban.db) or in redis, see 'kb snapshot show' and 'kb log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logging.SetOutput(os.Stderr)
		return logging.Setup(cfg.Log.Level, cfg.Log.Format)
	},
}

func main() {
	_ = godotenv.Load()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("KANBAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("api-url", "", "board API base URL (overrides kanban.yml)")
	flags.String("api-token", "", "bearer token for the board API")
	flags.String("snapshot-backend", "", "snapshot backend: sqlite, redis or none")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", flags.Lookup("workspace"))
	_ = viper.BindPFlag("json", flags.Lookup("json"))
	_ = viper.BindPFlag("api.base_url", flags.Lookup("api-url"))
	_ = viper.BindPFlag("api.token", flags.Lookup("api-token"))
	_ = viper.BindPFlag("snapshot.backend", flags.Lookup("snapshot-backend"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(columnCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(trackCmd())
	rootCmd.AddCommand(tagCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

// loadConfig reads kanban.yml and applies flag and KANBAN_* env overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	overrideString(&cfg.API.BaseURL, "api.base_url")
	overrideString(&cfg.API.Token, "api.token")
	overrideString(&cfg.Snapshot.Backend, "snapshot.backend")
	overrideString(&cfg.Snapshot.Key, "snapshot.key")
	overrideString(&cfg.Snapshot.RedisAddr, "snapshot.redis_addr")
	overrideString(&cfg.Server.Addr, "server.addr")
	overrideString(&cfg.Server.BasePath, "server.base_path")
	overrideString(&cfg.Server.JWTSecret, "server.jwt_secret")
	overrideString(&cfg.Log.Level, "log.level")
	overrideString(&cfg.Log.Format, "log.format")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideString(dst *string, key string) {
	if v := strings.TrimSpace(viper.GetString(key)); v != "" {
		*dst = v
	}
}

func boardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show the board",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				b := s.Store.State()
				if viper.GetBool("json") {
					return printJSON(b)
				}
				dir := s.Store.Directory()
				now := time.Now()
				for _, colID := range b.ColumnOrder {
					col := b.Columns[colID]
					tw := newTable()
					tw.SetTitle(fmt.Sprintf("%s (%d)", col.Title, len(col.TaskIDs)))
					tw.AppendHeader(table.Row{"#", "ID", "Title", "Priority", "Assignee", "Due", "Time"})
					for i, id := range col.TaskIDs {
						t := b.Tasks[id]
						tw.AppendRow(table.Row{i, t.ID, t.Title, t.Priority, dir.AssigneeName(t.Assignee), dueLabel(t, now), timeLabel(t)})
					}
					tw.Render()
				}
				return nil
			})
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks live in exactly one column. Creating, updating and deleting go through the board API first; moving is applied locally and mirrored to the API.",
	}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskMoveCmd())
	task.AddCommand(taskCommentCmd())
	return task
}

func taskListCmd() *cobra.Command {
	var status, assignee string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long:  "Lists the board's tasks in column order. With --status the API filters the tasks and the local board is not loaded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
					tasks, err := s.Client.TasksByStatus(ctx, status)
					if err != nil {
						return err
					}
					users, err := s.Client.Users(ctx)
					if err != nil {
						return err
					}
					return renderTasks(filterAssignee(tasks, assignee), board.NewDirectory(users))
				})
			}
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				tasks := filterAssignee(orderedTasks(s.Store.State()), assignee)
				return renderTasks(tasks, s.Store.Directory())
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "column id filter (applied by the API)")
	cmd.Flags().StringVar(&assignee, "assignee-id", "", "assignee filter")
	return cmd
}

func filterAssignee(tasks []domain.Task, assignee string) []domain.Task {
	if assignee == "" {
		return tasks
	}
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Assignee != nil && *t.Assignee == assignee {
			out = append(out, t)
		}
	}
	return out
}

func renderTasks(tasks []domain.Task, dir board.Directory) error {
	if viper.GetBool("json") {
		return printJSON(tasks)
	}
	now := time.Now()
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Assignee", "Tags", "Due", "Time"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, dir.AssigneeName(t.Assignee), tagNames(t.Tags), dueLabel(t, now), timeLabel(t)})
	}
	tw.Render()
	return nil
}

func taskShowCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				t, ok := s.Store.State().Tasks[args[0]]
				if remote {
					fresh, err := s.Client.Task(ctx, args[0])
					if err != nil {
						return err
					}
					fresh.Comments = t.Comments
					t, ok = fresh, true
				}
				if !ok {
					return fmt.Errorf("%w: %q", board.ErrTaskNotFound, args[0])
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				dir := s.Store.Directory()
				assigneeName := dir.AssigneeName(t.Assignee)
				if t.Assignee != nil {
					if _, known := dir.User(*t.Assignee); !known {
						if u, err := s.Client.User(ctx, *t.Assignee); err == nil {
							assigneeName = u.Name
						} else {
							log.WithError(err).WithField("user", *t.Assignee).Debug("assignee lookup failed")
						}
					}
				}
				now := time.Now()
				tw := newTable()
				tw.SetTitle(t.Title)
				tw.AppendRows([]table.Row{
					{"ID", t.ID},
					{"Status", t.Status},
					{"Priority", t.Priority},
					{"Assignee", assigneeName},
					{"Start", format.Date(t.StartDate)},
					{"End", format.Date(t.EndDate)},
					{"Deadline", format.DeadlineFor(t.EndDate, now)},
					{"Tags", tagNames(t.Tags)},
					{"Time spent", timeLabel(t)},
					{"Description", t.Description},
				})
				tw.Render()
				if len(t.Comments) > 0 {
					cw := newTable()
					cw.SetTitle("Comments")
					cw.AppendHeader(table.Row{"Author", "When", "Text"})
					for _, c := range t.Comments {
						ts := c.Timestamp
						cw.AppendRow(table.Row{dir.Name(c.AuthorID), format.Relative(&ts, now), c.Text})
					}
					cw.Render()
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "show the API's copy of the task instead of the local board")
	return cmd
}

func taskAddCmd() *cobra.Command {
	var title, description, status, priority, assignee, start, end string
	var tags []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := domain.Task{
				Title:       title,
				Description: description,
				Status:      status,
				Priority:    domain.Priority(priority),
				Assignee:    optionalString(assignee),
			}
			var err error
			if draft.StartDate, err = parseDate(start); err != nil {
				return err
			}
			if draft.EndDate, err = parseDate(end); err != nil {
				return err
			}
			if !draft.Priority.Valid() {
				return fmt.Errorf("invalid priority %q (low, medium, high)", priority)
			}
			for _, name := range tags {
				draft.Tags = append(draft.Tags, domain.Tag{Name: name})
			}
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if draft.Status == "" {
					order := s.Store.State().ColumnOrder
					if len(order) == 0 {
						return errors.New("board has no columns")
					}
					draft.Status = order[0]
				}
				t, err := s.Actions.CreateTask(ctx, draft)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "column id (defaults to the first column)")
	cmd.Flags().StringVar(&priority, "priority", string(domain.PriorityMedium), "priority: low, medium, high")
	cmd.Flags().StringVar(&assignee, "assignee-id", "", "assignee user id")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&tags, "tag", []string{}, "tag name (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, description, status, priority, assignee, start, end string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := board.TaskPatch{ID: args[0]}
			changed := cmd.Flags().Changed
			if changed("title") {
				patch.Title = board.Value(title)
			}
			if changed("description") {
				patch.Description = board.Value(description)
			}
			if changed("status") {
				patch.Status = board.Value(status)
			}
			if changed("priority") {
				patch.Priority = board.Value(domain.Priority(priority))
			}
			if changed("assign") {
				patch.Assignee = board.Value(optionalString(assignee))
			}
			if changed("start") {
				d, err := parseDate(start)
				if err != nil {
					return err
				}
				patch.StartDate = board.Value(d)
			}
			if changed("end") {
				d, err := parseDate(end)
				if err != nil {
					return err
				}
				patch.EndDate = board.Value(d)
			}
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := s.Actions.SaveTask(ctx, patch); err != nil {
					return err
				}
				return printJSONOrTable(s.Store.State().Tasks[patch.ID])
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&status, "status", "", "new column id")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&assignee, "assign", "", "assignee user id (empty clears)")
	cmd.Flags().StringVar(&start, "start", "", "start date (empty clears)")
	cmd.Flags().StringVar(&end, "end", "", "end date (empty clears)")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := s.Actions.RemoveTask(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("deleted task %s\n", args[0])
				return nil
			})
		},
	}
}

func taskMoveCmd() *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "move <id> <column>",
		Short: "Move a task to a column position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := s.Actions.Move(ctx, args[0], args[1], index); err != nil {
					return err
				}
				b := s.Store.State()
				return printJSONOrTable(map[string]any{
					"task":   args[0],
					"status": b.Tasks[args[0]].Status,
					"column": b.Columns[args[1]].TaskIDs,
				})
			})
		},
	}
	cmd.Flags().IntVar(&index, "index", -1, "destination index (default: end of column)")
	return cmd
}

func taskCommentCmd() *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "comment <id> <text>",
		Short: "Comment on a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[1:], " ")
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				c, err := s.Actions.PostComment(ctx, args[0], author, text)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&author, "author-id", "", "author user id (defaults to the assignee)")
	return cmd
}

func trackCmd() *cobra.Command {
	track := &cobra.Command{
		Use:   "track",
		Short: "Time tracking",
	}
	track.AddCommand(&cobra.Command{
		Use:   "start <task-id>",
		Short: "Start tracking time on a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := s.Store.Dispatch(ctx, board.StartTimeTracking{TaskID: args[0]}); err != nil {
					return err
				}
				return printJSONOrTable(s.Store.State().Tasks[args[0]].TimeTracking)
			})
		},
	})
	track.AddCommand(&cobra.Command{
		Use:   "stop <task-id>",
		Short: "Stop tracking and add the elapsed time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := s.Store.Dispatch(ctx, board.StopTimeTracking{TaskID: args[0]}); err != nil {
					return err
				}
				t := s.Store.State().Tasks[args[0]]
				return printJSONOrTable(map[string]any{"task": t.ID, "time_spent": t.TimeSpent, "display": format.TimeSpent(t.TimeSpent)})
			})
		},
	})
	return track
}

func tagCmd() *cobra.Command {
	tag := &cobra.Command{
		Use:   "tag",
		Short: "Tag tasks",
	}
	tag.AddCommand(tagListCmd())
	tag.AddCommand(&cobra.Command{
		Use:   "add <task-id> <name>",
		Short: "Create a tag and attach it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				t, err := s.Actions.AttachTag(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	})
	tag.AddCommand(&cobra.Command{
		Use:   "remove <task-id> <tag-id-or-name>",
		Short: "Detach a tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				task, ok := s.Store.State().Tasks[args[0]]
				if !ok {
					return fmt.Errorf("%w: %q", board.ErrTaskNotFound, args[0])
				}
				t, ok := app.FindTag(task, args[1])
				if !ok {
					return fmt.Errorf("task %s has no tag %q", args[0], args[1])
				}
				return s.Actions.DetachTag(ctx, args[0], t)
			})
		},
	})
	return tag
}

func snapshotCmd() *cobra.Command {
	snap := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect the saved board snapshot",
		Long:  "The board is written to a snapshot slot after every applied operation. It is never loaded back into the board; use it to see the last known board after a crash.",
	}
	snap.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the last snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				e, err := s.Snapshots.Load(ctx, s.Config.Snapshot.Key)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(e)
				}
				fmt.Printf("key=%s operation=%s saved=%s\n", e.Key, e.Operation, format.Relative(&e.SavedAt, time.Now()))
				tw := newTable()
				tw.AppendHeader(table.Row{"Column", "Tasks"})
				for _, id := range e.Board.ColumnOrder {
					tw.AppendRow(table.Row{e.Board.Columns[id].Title, strings.Join(e.Board.Columns[id].TaskIDs, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	})
	return snap
}

func logCmd() *cobra.Command {
	l := &cobra.Command{
		Use:   "log",
		Short: "Operation journal",
	}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var opType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest applied operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				entries, err := s.Journal().Journal(ctx, s.Config.Snapshot.Key, n, opType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"TS", "Type", "Payload"})
				for _, e := range entries {
					tw.AppendRow(table.Row{e.TS, e.Type, e.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of operations")
	cmd.Flags().StringVar(&opType, "type", "", "operation type filter (e.g. MOVE_TASK)")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage kanban.yml",
		Long:  "kanban.yml holds the board API address, snapshot backend, view server and logging settings. Flags and KANBAN_* environment variables override it.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var baseURL string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default kanban.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(baseURL)), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", config.DefaultBaseURL, "board API base URL")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate kanban.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath, origin string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board to a view layer over HTTP and websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if addr == "" {
					addr = s.Config.Server.Addr
				}
				if basePath == "" {
					basePath = s.Config.Server.BasePath
				}
				go func() {
					if err := s.Store.Load(ctx); err != nil {
						log.WithError(err).Error("board unavailable; serving the failed state")
					}
				}()
				handler, err := server.New(server.Config{
					Store:         s.Store,
					BasePath:      basePath,
					Auth:          server.AuthConfig{JWTSecret: s.Config.Server.JWTSecret},
					AllowedOrigin: origin,
				})
				if err != nil {
					return err
				}
				if s.Config.Server.JWTSecret == "" {
					log.Warn("server.jwt_secret is empty; the view API is unauthenticated")
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				log.WithFields(log.Fields{"addr": addr, "base_path": basePath}).Info("serving board (OpenAPI at /openapi.json, Swagger UI at /docs, metrics at /metrics)")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to server.base_path)")
	cmd.Flags().StringVar(&origin, "allowed-origin", os.Getenv("ALLOWED_ORIGIN"), "websocket Origin to accept (empty accepts any)")
	return cmd
}

// --- helpers ---

func withSession(ctx context.Context, fn func(context.Context, *app.Session) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := app.Open(ctx, viper.GetString("workspace"), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(effectGrace); err != nil {
			log.WithError(err).Warn("close session")
		}
	}()
	return fn(ctx, s)
}

// withBoard opens a session and loads the board from the API first.
func withBoard(ctx context.Context, fn func(context.Context, *app.Session) error) error {
	return withSession(ctx, func(ctx context.Context, s *app.Session) error {
		if err := s.Store.Load(ctx); err != nil {
			var apiErr *api.APIError
			if errors.As(err, &apiErr) {
				return fmt.Errorf("load board from %s: %w", s.Config.API.BaseURL, err)
			}
			return err
		}
		return fn(ctx, s)
	})
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func orderedTasks(b domain.Board) []domain.Task {
	out := make([]domain.Task, 0, len(b.Tasks))
	seen := map[string]bool{}
	for _, colID := range b.ColumnOrder {
		for _, id := range b.Columns[colID].TaskIDs {
			if t, ok := b.Tasks[id]; ok && !seen[id] {
				out = append(out, t)
				seen[id] = true
			}
		}
	}
	var rest []domain.Task
	for id, t := range b.Tasks {
		if !seen[id] {
			rest = append(rest, t)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].ID < rest[j].ID })
	return append(out, rest...)
}

func tagNames(tags []domain.Tag) string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return strings.Join(names, ", ")
}

func dueLabel(t domain.Task, now time.Time) string {
	if t.EndDate == nil {
		return ""
	}
	days, _ := format.DaysRemaining(t.EndDate, now)
	return fmt.Sprintf("%s (%s, %dd)", format.Date(t.EndDate), format.DeadlineFor(t.EndDate, now), days)
}

func timeLabel(t domain.Task) string {
	label := format.TimeSpent(t.TimeSpent)
	if t.TimeTracking.IsTracking {
		label += " (tracking)"
	}
	return label
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := api.ParseWireTime(s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return &t, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
