// Package main provides the entry point for the piperd server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"piperd/internal/cache"
	"piperd/internal/config"
	"piperd/internal/server"
	"piperd/internal/synth"
	"piperd/internal/tts/engines"
	"piperd/internal/voices"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	host       string
	port       int
	voicesDir  string
	cacheDir   string
	debug      bool
	logFile    string

	rootCmd = &cobra.Command{
		Use:   "piperd",
		Short: "Self-hosted Piper text-to-speech HTTP server",
		Long: "piperd serves a POST /tts endpoint that synthesizes speech with the\n" +
			"Piper engine (or the Google Cloud TTS API), returns WAV or MP3, and\n" +
			"caches results on disk keyed by the request parameters.",
		SilenceErrors: false,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          runServer,
	}
)

func runServer(*cobra.Command, []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	closer, err := setupLog(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closer() }()

	registry, err := voices.NewRegistry(cfg.VoicesDir)
	if err != nil {
		return err
	}
	defer registry.Close() //nolint:errcheck
	if err := registry.Watch(); err != nil {
		log.Warn("Voice hot reload disabled", "err", err)
	}
	log.Info("Voice registry ready", "dir", cfg.VoicesDir, "voices", registry.Count())

	cacheConfig := cache.DefaultConfig()
	cacheConfig.DiskPath = cfg.CacheDir
	cacheConfig.MemoryCapacity = int64(cfg.MemoryCacheMB) * 1024 * 1024
	cacheConfig.DiskCapacity = int64(cfg.DiskCacheMB) * 1024 * 1024
	cacheConfig.TTL = cfg.CacheTTL
	cacheConfig.CleanupInterval = cfg.CleanupInterval

	cacheManager, err := cache.NewManager(cacheConfig)
	if err != nil {
		return err
	}
	defer cacheManager.Close() //nolint:errcheck

	piper := engines.NewPiper(engines.PiperConfig{
		Timeout: cfg.SynthesisTimeout,
		Workers: cfg.Workers,
	})
	google := engines.NewGoogle(engines.GoogleConfig{
		AccessToken:       cfg.GoogleAccessToken,
		ProjectID:         cfg.GoogleProject,
		RequestsPerMinute: cfg.GoogleRPM,
	})

	synthesizer := synth.New(piper, google, registry, cacheManager)

	health := synthesizer.Health()
	if !health.PiperInstalled {
		log.Warn("Piper binary not found in PATH; /tts will return 501 for the piper engine")
	}
	if !health.FFmpegInstalled {
		log.Warn("ffmpeg not found in PATH; mp3 output unavailable")
	}

	srv := server.New(synthesizer, server.Config{
		SynthesisTimeout: cfg.SynthesisTimeout,
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-done
		log.Info("Shutting down", "signal", sig)
		if err := srv.Shutdown(); err != nil {
			log.Error("Shutdown failed", "err", err)
		}
	}()

	return srv.Listen(cfg.Addr())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().StringVar(&host, "host", "0.0.0.0", "listen address")
	rootCmd.Flags().IntVarP(&port, "port", "p", 17100, "listen port")
	rootCmd.Flags().StringVar(&voicesDir, "voices-dir", "./voices", "directory containing Piper ONNX voice models")
	rootCmd.Flags().StringVar(&cacheDir, "cache-dir", "./cache", "directory for cached audio")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a file instead of stderr")

	_ = viper.BindPFlag("host", rootCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("port", rootCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("voices_dir", rootCmd.Flags().Lookup("voices-dir"))
	_ = viper.BindPFlag("cache_dir", rootCmd.Flags().Lookup("cache-dir"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))

	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, voicesCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "piperd")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "piperd")}, dirs...)
	}

	if c := os.Getenv("PIPERD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("piperd")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("piperd")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "piperd.yml")
	}
}
