package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/neurovoki/neurovoki/internal/ai/gemini"
	"github.com/neurovoki/neurovoki/internal/config"
	"github.com/neurovoki/neurovoki/internal/game"
	"github.com/neurovoki/neurovoki/internal/httpapi"
	"github.com/neurovoki/neurovoki/internal/ws"
	staticserver "github.com/neurovoki/neurovoki/static"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()
	cfg := config.Default()
	cobra.CheckErr(newCmd(&cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("NEUROVOKI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "neurovoki",
		Short:         "Party quiz server with a generative AI referee.",
		Args:          cobra.ExactArgs(0),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	fs := cmd.Flags()
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on (env: NEUROVOKI_PORT)")
	fs.StringVarP(&cfg.Bind, "bind", "b", cfg.Bind, "address to bind to (env: NEUROVOKI_BIND)")
	fs.StringVar(&cfg.GeminiKey, "gemini-key", cfg.GeminiKey, "Gemini API key (env: GEMINI_API_KEY)")
	fs.StringVar(&cfg.GeminiBaseURL, "gemini-base-url", cfg.GeminiBaseURL, "Gemini API base URL (env: GEMINI_BASE_URL)")
	fs.StringVar(&cfg.TextModel, "text-model", cfg.TextModel, "model for text generation (env: NEUROVOKI_TEXT_MODEL)")
	fs.StringVar(&cfg.ImageModel, "image-model", cfg.ImageModel, "model for image generation (env: NEUROVOKI_IMAGE_MODEL)")
	fs.StringVar(&cfg.StateFile, "state-file", cfg.StateFile, "path for persisted game state (env: NEUROVOKI_STATE_FILE)")
	fs.StringVar(&cfg.CatalogFile, "catalog", cfg.CatalogFile, "round catalog YAML, empty for built-in (env: NEUROVOKI_CATALOG)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "debug-level logging (env: NEUROVOKI_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("neurovoki v{{.Version}}\n")

	return cmd
}

func serve(cfg *config.Config) error {
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	logger := zerologlog.Logger

	cat, err := game.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		logger.Info().
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("dur", time.Since(start)).
			Msg("http")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	provider := gemini.New(cfg.GeminiKey, cfg.GeminiBaseURL, cfg.TextModel, cfg.ImageModel)
	store := game.NewStore(cfg.StateFile, logger)
	manager := game.NewManager(cat, provider, store, logger)

	sock := ws.New(manager)
	io := sock.Mount(r)
	defer io.Close()

	httpapi.New(manager, logger).Register(r)

	r.NoRoute(func(c *gin.Context) {
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	logger.Info().Str("addr", cfg.Addr()).Msg("listening")
	return r.Run(cfg.Addr())
}
