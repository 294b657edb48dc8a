// file: cmd/root.go
// version: 1.0.0
// guid: 6a7b8c9d-0e1f-2a3b-4c5d-6e7f8a9b0c1d

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TheRealSavi/iOpenPod/internal/config"
)

var cfgFile string
var deviceRoot string
var libraryRoots []string
var checksumOverride string
var transcodeBitrate int
var writeBackPlayCounts bool
var writeBackRatings bool
var workers int

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "iopenpod",
	Short: "Sync a music library onto an iPod Classic/Nano",
	Long: `iOpenPod mirrors a desktop music library onto an iPod Classic or Nano
by reading and writing the device's own databases directly.

Tracks are identified by acoustic fingerprint, so renaming, re-tagging, or
re-encoding a file on the PC never duplicates it on the device.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.iopenpod.yaml)")
	rootCmd.PersistentFlags().StringVar(&deviceRoot, "device", "", "mount point of the iPod")
	rootCmd.PersistentFlags().StringSliceVar(&libraryRoots, "library", nil, "PC music directory to sync from (repeatable)")
	rootCmd.PersistentFlags().StringVar(&checksumOverride, "checksum", "", "force signing scheme: none, hash58, hash72, both")
	rootCmd.PersistentFlags().IntVar(&transcodeBitrate, "bitrate", 192, "AAC bitrate in kbps for lossy transcodes")
	rootCmd.PersistentFlags().BoolVar(&writeBackPlayCounts, "write-back-play-counts", false, "write device play counts into the PC files' tags")
	rootCmd.PersistentFlags().BoolVar(&writeBackRatings, "write-back-ratings", false, "write device ratings into the PC files' tags")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 4, "concurrent scan/fingerprint workers")

	viper.BindPFlag("device_root", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("library_roots", rootCmd.PersistentFlags().Lookup("library"))
	viper.BindPFlag("checksum_override", rootCmd.PersistentFlags().Lookup("checksum"))
	viper.BindPFlag("transcode_bitrate_kbps", rootCmd.PersistentFlags().Lookup("bitrate"))
	viper.BindPFlag("write_back_play_counts", rootCmd.PersistentFlags().Lookup("write-back-play-counts"))
	viper.BindPFlag("write_back_ratings", rootCmd.PersistentFlags().Lookup("write-back-ratings"))
	viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(deviceCmd)
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".iopenpod")
			viper.SetConfigType("yaml")
		}
	}

	viper.SetEnvPrefix("IOPENPOD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	config.InitConfig()
}
