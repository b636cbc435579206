package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ehr/wardbook/internal/config"
	"github.com/ehr/wardbook/internal/console"
	"github.com/ehr/wardbook/internal/domain/user"
	"github.com/ehr/wardbook/internal/platform/auth"
	"github.com/ehr/wardbook/internal/platform/middleware"
	"github.com/ehr/wardbook/internal/platform/sandbox"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is what every command needs once configuration is resolved.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	reg    *user.Registry
}

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "wardbook",
		Short:         "Hospital patient and admin registry",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, v)
		},
	}
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding the admin/ and patient/ record partitions")
	_ = v.BindPFlag("DATA_DIR", rootCmd.PersistentFlags().Lookup("data-dir"))

	rootCmd.AddCommand(consoleCmd(v))
	rootCmd.AddCommand(serveCmd(v))
	rootCmd.AddCommand(seedCmd(v))
	rootCmd.AddCommand(statsCmd(v))
	rootCmd.AddCommand(adminCmd(v))
	rootCmd.AddCommand(patientCmd(v))
	return rootCmd
}

// setup loads config, builds the logger and opens the registry.
func setup(cmd *cobra.Command, v *viper.Viper) (*app, error) {
	cfg, err := config.LoadWith(v)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	repo := user.NewOSFileRepo(cfg.DataDir, logger)
	reg, err := user.NewRegistry(cmd.Context(), repo, logger)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	logger.Debug().Str("data_dir", cfg.DataDir).Msg("registry loaded")
	return &app{cfg: cfg, logger: logger, reg: reg}, nil
}

// -- console --

func consoleCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Start the interactive console (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, v)
		},
	}
}

func runConsole(cmd *cobra.Command, v *viper.Viper) error {
	a, err := setup(cmd, v)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []console.Option{
		console.WithPageSize(a.cfg.PageSize),
		console.WithLogger(a.logger),
	}
	if cmd.InOrStdin() == os.Stdin {
		if secret := console.TerminalSecret(os.Stdin); secret != nil {
			opts = append(opts, console.WithSecretReader(secret))
		}
	}
	return console.New(a.reg, cmd.InOrStdin(), cmd.OutOrStdout(), opts...).Run(ctx)
}

// -- serve --

func serveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, v)
			if err != nil {
				return err
			}
			return runServer(a)
		},
	}
}

func newServer(a *app) (*echo.Echo, error) {
	key := []byte(a.cfg.SessionSigningKey)
	if len(key) == 0 {
		var err error
		if key, err = auth.RandomKey(); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
		a.logger.Warn().Msg("SESSION_SIGNING_KEY not set; tokens will not survive a restart")
	}
	issuer := auth.NewTokenIssuer(key, a.cfg.SessionTTL)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = user.StructValidator{}

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	apiV1 := e.Group("/api/v1")
	user.NewHandler(a.reg, issuer).RegisterRoutes(apiV1)

	if a.cfg.IsDev() {
		protected := apiV1.Group("", auth.Middleware(issuer), auth.RequireRole(user.RoleAdmin.String()),
			user.RequireActiveAdmin(a.reg))
		sandbox.NewSeedHandler(sandbox.NewSeeder(a.reg)).RegisterRoutes(protected)
	}
	return e, nil
}

func runServer(a *app) error {
	e, err := newServer(a)
	if err != nil {
		return err
	}
	logger := a.logger

	go func() {
		addr := ":" + a.cfg.Port
		logger.Info().Str("addr", addr).Str("data_dir", a.cfg.DataDir).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// -- seed --

func seedCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the record store with synthetic admins and patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, v)
			if err != nil {
				return err
			}
			sc := sandbox.DefaultSeedConfig()
			sc.AdminCount, _ = cmd.Flags().GetInt("admins")
			sc.PatientCount, _ = cmd.Flags().GetInt("patients")
			sc.AdmissionsPerPatient, _ = cmd.Flags().GetInt("admissions")
			sc.Seed, _ = cmd.Flags().GetInt64("seed")

			res, err := sandbox.NewSeeder(a.reg).Generate(cmd.Context(), sc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d admins, %d patients, %d admissions (%d failed) in %s\n",
				res.Admins, res.Patients, res.Admissions, res.Failed, res.Duration.Round(time.Millisecond))
			return nil
		},
	}
	def := sandbox.DefaultSeedConfig()
	cmd.Flags().Int("admins", def.AdminCount, "number of admins to create")
	cmd.Flags().Int("patients", def.PatientCount, "number of patients to create")
	cmd.Flags().Int("admissions", def.AdmissionsPerPatient, "admissions per patient, including the first")
	cmd.Flags().Int64("seed", 0, "random seed (0 picks one)")
	return cmd
}

// -- stats --

func statsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print stored admin and patient counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, v)
			if err != nil {
				return err
			}
			admins, err := a.reg.AdminCount(cmd.Context())
			if err != nil {
				return err
			}
			patients, err := a.reg.PatientCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admins: %d\npatients: %d\n", admins, patients)
			return nil
		},
	}
}

// -- admin --

func adminCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register an admin account without logging in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, v)
			if err != nil {
				return err
			}
			acct := user.Account{}
			acct.Username, _ = cmd.Flags().GetString("username")
			acct.FullName, _ = cmd.Flags().GetString("full-name")
			acct.Email, _ = cmd.Flags().GetString("email")
			acct.ContactNumber, _ = cmd.Flags().GetString("contact")
			acct.Password, _ = cmd.Flags().GetString("password")

			if acct.Email != "" {
				if err := user.CheckEmail(acct.Email); err != nil {
					return err
				}
			}
			if acct.ContactNumber != "" {
				if err := user.CheckContactNumber(acct.ContactNumber); err != nil {
					return err
				}
			}
			if acct.Password == "" {
				if acct.Password, err = readPassword(cmd); err != nil {
					return err
				}
			}
			if acct.Password == "" {
				return fmt.Errorf("password must not be empty")
			}

			created, err := a.reg.CreateAdmin(cmd.Context(), &user.Admin{Account: acct})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", created.Username, created.ID)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "login name")
	createCmd.Flags().String("full-name", "", "display name")
	createCmd.Flags().String("email", "", "email address")
	createCmd.Flags().String("contact", "", "contact number")
	createCmd.Flags().String("password", "", "password (prompted when omitted)")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("full-name")

	cmd.AddCommand(createCmd)
	cmd.AddCommand(listCmd(v, user.RoleAdmin))
	return cmd
}

// readPassword prompts on stderr, without echo when stdin is a terminal.
func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	if cmd.InOrStdin() == os.Stdin {
		if secret := console.TerminalSecret(os.Stdin); secret != nil {
			pw, err := secret()
			fmt.Fprintln(cmd.ErrOrStderr())
			return pw, err
		}
	}
	var pw string
	_, err := fmt.Fscanln(cmd.InOrStdin(), &pw)
	if err != nil && err != io.EOF {
		return "", err
	}
	return pw, nil
}

// -- patient --

func patientCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Inspect patient records",
	}
	cmd.AddCommand(listCmd(v, user.RolePatient))
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print one user record as JSON, without its password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, v)
			if err != nil {
				return err
			}
			u, ok, err := a.reg.GetUserByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", user.ErrNotFound, args[0])
			}
			view, err := user.PublicView(u)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	})
	return cmd
}

func listCmd(v *viper.Viper, role user.Role) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s records, newest first", role),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, v)
			if err != nil {
				return err
			}
			query, _ := cmd.Flags().GetString("query")
			rows := a.reg.GetPatients(query)
			if role == user.RoleAdmin {
				rows = a.reg.GetAdmins(query)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFULL NAME")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\n", r.ID, r.FullName)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringP("query", "q", "", "substring of full name, id or username")
	return cmd
}
