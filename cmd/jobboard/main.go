package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobboard/internal/app"
	"jobboard/internal/config"
	"jobboard/internal/db"
	"jobboard/internal/domain"
	"jobboard/internal/logging"
	"jobboard/internal/migrate"
	"jobboard/internal/server"
)

// cliPrincipal is the identity CLI commands act as.
var cliPrincipal = domain.Principal{ID: "cli", Role: domain.RoleAdmin}

var rootCmd = &cobra.Command{
	Use:   "jobboard",
	Short: "Job board API server and admin CLI",
	Long: `jobboard serves the job board HTTP API: companies post jobs, job seekers apply
with a resume, employers move applications through their status lifecycle.
Configuration comes from jobboard.yml in the workspace, overridden by flags and
JOBBOARD_* environment variables (a .env file is loaded first).`,
	SilenceUsage: true,
}

func main() {
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
	_ = godotenv.Load()
	viper.SetEnvPrefix("JOBBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("auth.jwt_secret", "JOBBOARD_JWT_SECRET", "JOBBOARD_AUTH_JWT_SECRET")
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory holding jobboard.yml")
	flags.StringP("config", "c", "", "config file (overrides workspace lookup)")
	flags.Bool("json", false, "output JSON")
	flags.String("db", "", "database path")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", flags.Lookup("workspace"))
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("json", flags.Lookup("json"))
	_ = viper.BindPFlag("database.path", flags.Lookup("db"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(applicationCmd())
	rootCmd.AddCommand(configCmd())
}

// loadConfig reads jobboard.yml (or --config) and applies flag and env overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := viper.GetString("config"); path != "" {
		cfg, err = config.FromFile(path)
	} else {
		cfg, err = config.LoadOptional(viper.GetString("workspace"))
	}
	if err != nil {
		return nil, err
	}
	for key, dst := range map[string]*string{
		"server.addr":             &cfg.Server.Addr,
		"server.base_path":        &cfg.Server.BasePath,
		"database.path":           &cfg.Database.Path,
		"auth.jwt_secret":         &cfg.Auth.JWTSecret,
		"storage.root":            &cfg.Storage.Root,
		"storage.public_base_url": &cfg.Storage.PublicBaseURL,
		"log.level":               &cfg.Log.Level,
		"log.format":              &cfg.Log.Format,
	} {
		if viper.IsSet(key) {
			*dst = viper.GetString(key)
		}
	}
	if viper.IsSet("sweeper.enabled") {
		cfg.Sweeper.Enabled = viper.GetBool("sweeper.enabled")
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	return logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				handler, err := a.Handler()
				if err != nil {
					return err
				}
				if a.Config.Sweeper.Enabled {
					c, err := a.Sweeper.Schedule(ctx, a.Config.Sweeper.Schedule)
					if err != nil {
						return err
					}
					c.Start()
					defer func() { <-c.Stop().Done() }()
				}
				srv := &http.Server{Addr: a.Config.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := srv.Shutdown(shutdownCtx); err != nil {
						a.Log.WithError(err).Warn("shutdown")
					}
				}()
				a.Log.WithFields(logrus.Fields{
					"addr":      a.Config.Server.Addr,
					"base_path": a.Config.Server.BasePath,
					"sweeper":   a.Config.Sweeper.Enabled,
				}).Info("serving jobboard API")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	cmd.Flags().String("base-path", "", "API base path")
	cmd.Flags().Bool("sweeper", true, "run the scheduled orphan sweeper")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.base_path", cmd.Flags().Lookup("base-path"))
	_ = viper.BindPFlag("sweeper.enabled", cmd.Flags().Lookup("sweeper"))
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Path: cfg.Database.Path})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(cmd.Context(), conn); err != nil {
				return err
			}
			v, err := migrate.Version()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"database": cfg.Database.Path, "schema_version": v})
			}
			fmt.Printf("%s at schema version %d\n", cfg.Database.Path, v)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete resume files no application references",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if cmd.Flags().Changed("grace") {
					a.Sweeper.Config.Grace = grace
				}
				res, err := a.Sweeper.Sweep(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Scanned", "Referenced", "Young", "Deleted", "Failed"})
				tw.AppendRow(table.Row{res.Scanned, res.Referenced, res.Young, res.Deleted, res.Failed})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 0, "minimum age of a file before it is collected")
	return cmd
}

func adminCmd() *cobra.Command {
	adm := &cobra.Command{Use: "admin", Short: "Manage admin accounts"}
	adm.AddCommand(adminCreateCmd())
	return adm
}

func adminCreateCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an ADMIN user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("JOBBOARD_ADMIN_PASSWORD")
			}
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password (or JOBBOARD_ADMIN_PASSWORD) required")
			}
			if name == "" {
				name = email
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, err := a.Engine.CreateAdmin(ctx, name, email, password)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	return cmd
}

func tokenCmd() *cobra.Command {
	tok := &cobra.Command{Use: "token", Short: "Manage bearer tokens"}
	tok.AddCommand(tokenIssueCmd())
	return tok
}

func tokenIssueCmd() *cobra.Command {
	var userID string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if a.Config.Auth.JWTSecret == "" {
					return fmt.Errorf("auth.jwt_secret is required; set JOBBOARD_JWT_SECRET")
				}
				u, err := a.Engine.GetUser(ctx, userID)
				if err != nil {
					return err
				}
				if ttl <= 0 {
					ttl = a.Config.Auth.TokenTTL
				}
				now := time.Now()
				token, err := server.IssueToken(a.Config.Auth.JWTSecret, domain.Principal{ID: u.ID, Role: u.Role}, ttl, now)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(server.LoginResponse{Token: token, ExpiresAt: now.Add(ttl).UTC(), User: u})
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	return cmd
}

func applicationCmd() *cobra.Command {
	appCmd := &cobra.Command{Use: "application", Short: "Inspect applications"}
	appCmd.AddCommand(applicationHistoryCmd())
	return appCmd
}

func applicationHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <application-id>",
		Short: "Show the status history of an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				view, err := a.Engine.GetApplication(ctx, cliPrincipal, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(view.StatusHistory)
				}
				fmt.Printf("%s  %s @ %s  (%s)\n", view.ID, view.JobTitle, view.CompanyName, view.Status)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Status", "Previous", "Changed By", "Changed At"})
				for _, c := range view.StatusHistory {
					prev := ""
					if c.PreviousStatus != nil {
						prev = string(*c.PreviousStatus)
					}
					tw.AppendRow(table.Row{c.Seq, c.Status, prev, c.ChangedBy, c.ChangedAt.Format(time.RFC3339)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage jobboard.yml"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default jobboard.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
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
			if cfg.Auth.JWTSecret != "" {
				cfg.Auth.JWTSecret = "<redacted>"
			}
			return printJSON(cfg)
		},
	}
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, cfg, afero.NewOsFs(), log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
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
