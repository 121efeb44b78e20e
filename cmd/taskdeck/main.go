package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"taskdeck/internal/auth"
	"taskdeck/internal/cache"
	"taskdeck/internal/config"
	"taskdeck/internal/db"
	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
	"taskdeck/internal/logging"
	"taskdeck/internal/migrate"
	"taskdeck/internal/notify"
	"taskdeck/internal/server"
	"taskdeck/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "taskdeck",
	Short: "TaskDeck multi-tenant task management backend",
	Long: `TaskDeck manages organizations, projects and tasks with role-based
authorization, a cached read path over Redis and assignment notifications.`,
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("TASKDECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("data-dir", ".taskdeck", "data directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(tokenCmd())
}

func openDB() (*sql.DB, error) {
	conn, err := db.Open(db.Config{Path: viper.GetString("data-dir")})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func serveCmd() *cobra.Command {
	var basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("TASKDECK_JWT_SECRET is required for bearer auth")
			}
			logging.Init(cfg.LogLevel, cfg.LogFile)

			conn, err := openDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			st := store.New(conn)
			rc := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			notifications := notify.NewStore(rc.Client(), cfg.NotificationTTL)
			eng := engine.New(st, rc, notifications, cfg)
			resolver := auth.Resolver{Secret: cfg.JWTSecret, Store: st}

			handler, err := server.New(server.Config{
				Engine:        eng,
				Notifications: notifications,
				Resolver:      resolver,
				BasePath:      basePath,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logging.L().WithField("addr", cfg.ListenAddr).Info("serving TaskDeck API")
			fmt.Printf("Serving TaskDeck API on http://%s%s (OpenAPI at %s/openapi.json)\n", cfg.ListenAddr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openDB()
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Println("migrations applied")
			return nil
		},
	}
}

// seedFixture mirrors the YAML fixture layout consumed by `taskdeck seed`.
type seedFixture struct {
	Organizations []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"organizations"`
	Users []struct {
		ID    string `yaml:"id"`
		OrgID string `yaml:"organization_id"`
		Name  string `yaml:"name"`
		Email string `yaml:"email"`
		Role  string `yaml:"role"`
	} `yaml:"users"`
	Projects []struct {
		ID          string   `yaml:"id"`
		OrgID       string   `yaml:"organization_id"`
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Members     []string `yaml:"members"`
	} `yaml:"projects"`
	Tasks []struct {
		ID         string  `yaml:"id"`
		ProjectID  string  `yaml:"project_id"`
		CreatorID  string  `yaml:"creator_id"`
		AssigneeID *string `yaml:"assignee_id"`
		Title      string  `yaml:"title"`
		Status     string  `yaml:"status"`
		Priority   string  `yaml:"priority"`
		DueDate    *string `yaml:"due_date"`
	} `yaml:"tasks"`
}

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load fixture data from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var fixture seedFixture
			if err := yaml.Unmarshal(data, &fixture); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			conn, err := openDB()
			if err != nil {
				return err
			}
			defer conn.Close()
			st := store.New(conn)
			ctx := cmd.Context()
			now := time.Now().UTC().Format(time.RFC3339)

			for _, o := range fixture.Organizations {
				if o.ID == "" {
					o.ID = uuid.New().String()
				}
				if err := st.InsertOrganization(ctx, domain.Organization{ID: o.ID, Name: o.Name, CreatedAt: now}); err != nil {
					return fmt.Errorf("organization %s: %w", o.Name, err)
				}
			}
			for _, u := range fixture.Users {
				if u.ID == "" {
					u.ID = uuid.New().String()
				}
				role := domain.Role(u.Role)
				if !role.Valid() {
					return fmt.Errorf("user %s: invalid role %q", u.Email, u.Role)
				}
				err := st.InsertUser(ctx, domain.User{
					ID: u.ID, OrgID: u.OrgID, Name: u.Name, Email: u.Email,
					Role: role, IsActive: true, CreatedAt: now,
				})
				if err != nil {
					return fmt.Errorf("user %s: %w", u.Email, err)
				}
			}
			for _, p := range fixture.Projects {
				if p.ID == "" {
					p.ID = uuid.New().String()
				}
				err := st.InsertProject(ctx, domain.Project{
					ID: p.ID, OrgID: p.OrgID, Name: p.Name, Description: p.Description, CreatedAt: now,
				})
				if err != nil {
					return fmt.Errorf("project %s: %w", p.Name, err)
				}
				for _, member := range p.Members {
					if err := st.AddMember(ctx, p.ID, member, now); err != nil {
						return fmt.Errorf("project %s member %s: %w", p.Name, member, err)
					}
				}
			}
			for _, t := range fixture.Tasks {
				if t.ID == "" {
					t.ID = uuid.New().String()
				}
				status := domain.Status(t.Status)
				if t.Status == "" {
					status = domain.StatusTodo
				}
				priority := domain.Priority(t.Priority)
				if t.Priority == "" {
					priority = domain.PriorityMedium
				}
				if t.DueDate != nil {
					due, err := canonicalDueDate(*t.DueDate)
					if err != nil {
						return fmt.Errorf("task %s: %w", t.Title, err)
					}
					t.DueDate = &due
				}
				err := st.InsertTask(ctx, domain.Task{
					ID: t.ID, ProjectID: t.ProjectID, CreatorID: t.CreatorID,
					AssigneeID: t.AssigneeID, Status: status, Priority: priority,
					DueDate: t.DueDate, Title: t.Title, CreatedAt: now, UpdatedAt: now,
				})
				if err != nil {
					return fmt.Errorf("task %s: %w", t.Title, err)
				}
			}
			fmt.Printf("seeded %d organizations, %d users, %d projects, %d tasks\n",
				len(fixture.Organizations), len(fixture.Users), len(fixture.Projects), len(fixture.Tasks))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "seed.yaml", "fixture file")
	return cmd
}

// canonicalDueDate folds fixture due dates to UTC RFC3339, the
// representation task queries compare as text.
func canonicalDueDate(s string) (string, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339), nil
		}
	}
	return "", fmt.Errorf("invalid due date %q", s)
}

func reportCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print task counts by status for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			conn, err := openDB()
			if err != nil {
				return err
			}
			defer conn.Close()
			st := store.New(conn)
			counts, err := st.CountTasksByStatus(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				out := make(map[string]int, len(domain.AllStatuses))
				for _, s := range domain.AllStatuses {
					out[string(s)] = counts[s]
				}
				b, _ := json.MarshalIndent(out, "", "  ")
				fmt.Println(string(b))
				return nil
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Status", "Tasks"})
			total := 0
			for _, s := range domain.AllStatuses {
				tw.AppendRow(table.Row{string(s), counts[s]})
				total += counts[s]
			}
			tw.AppendFooter(table.Row{"total", total})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func tokenCmd() *cobra.Command {
	var userID string
	var expiry time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user required")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("TASKDECK_JWT_SECRET is required")
			}
			conn, err := openDB()
			if err != nil {
				return err
			}
			defer conn.Close()
			st := store.New(conn)
			if _, err := st.GetUser(cmd.Context(), userID); err != nil {
				return err
			}
			resolver := auth.Resolver{Secret: cfg.JWTSecret, Store: st}
			token, err := resolver.IssueToken(userID, expiry)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().DurationVar(&expiry, "expiry", 7*24*time.Hour, "token lifetime")
	return cmd
}
