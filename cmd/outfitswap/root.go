package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "outfitswap",
	Short:         "Dress one person in many outfits",
	Long:          `outfitswap pairs a base photo with each outfit image and asks an image edit model to dress the person in that outfit, one request at a time.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("provider", "", "edit provider: gemini or synthetic (env EDIT_PROVIDER)")
	rootCmd.PersistentFlags().String("model", "", "Gemini model (env GEMINI_MODEL)")
	rootCmd.PersistentFlags().String("aspect-ratio", "", "output aspect ratio (env ASPECT_RATIO)")
	rootCmd.PersistentFlags().Int("timeout", 0, "per-request timeout in seconds (env GEMINI_TIMEOUT_SECONDS)")
	rootCmd.PersistentFlags().String("log-file", "", "also write JSON logs to this rotated file (env LOG_FILE)")

	_ = viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
	_ = viper.BindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))
	_ = viper.BindPFlag("aspect_ratio", rootCmd.PersistentFlags().Lookup("aspect-ratio"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(runCmd)
}

func initConfig() {
	// OUTFITSWAP_PROVIDER, OUTFITSWAP_ASPECT_RATIO, ...
	viper.SetEnvPrefix("outfitswap")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}
