package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/logging"
)

var (
	configPath string
	logLevel   string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "facewatch",
	Short: "Recognize and track faces in camera streams",
	Long: `facewatch watches camera snapshot streams, follows the faces it sees
across frames and resolves them to enrolled people. Faces that stay
unrecognized for long enough get a stable UnknownN identity that can later
be renamed once someone knows who it is.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
}

func initConfig(cmd *cobra.Command, args []string) error {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	if err := logging.Init(loaded.Log.Level, loaded.Log.Pretty); err != nil {
		return err
	}
	cfg = loaded
	return nil
}
