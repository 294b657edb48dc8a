// file: internal/config/config.go
// version: 2.0.0
// guid: 7b8c9d0e-1f2a-3b4c-5d6e-7f8a9b0c1d2e

package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// DeviceRoot is the iPod's mount point.
	DeviceRoot string
	// LibraryRoots are the PC music directories to sync from.
	LibraryRoots []string

	// ChecksumOverride forces the database signing scheme ("none",
	// "hash58", "hash72", "both"); empty resolves it from SysInfo.
	ChecksumOverride string

	// FingerprintBinary is the fpcalc executable.
	FingerprintBinary string
	// TranscodeBinary is the transcoder executable.
	TranscodeBinary string
	// TranscodeBitrateKbps is the AAC bitrate for lossy transcodes.
	TranscodeBitrateKbps int
	// CacheDir holds the content-addressed transcode cache.
	CacheDir string

	// WriteBackPlayCounts and WriteBackRatings enable tag write-back into
	// the PC library.
	WriteBackPlayCounts bool
	WriteBackRatings    bool

	// Workers bounds concurrent scans and fingerprint child processes.
	Workers int
}

var AppConfig Config

// InitConfig initializes the application configuration
func InitConfig() {
	viper.SetDefault("transcode_bitrate_kbps", 192)
	viper.SetDefault("fingerprint_binary", "fpcalc")
	viper.SetDefault("transcode_binary", "ffmpeg")
	viper.SetDefault("workers", 4)
	viper.SetDefault("cache_dir", defaultCacheDir())

	AppConfig = Config{
		DeviceRoot:           viper.GetString("device_root"),
		LibraryRoots:         viper.GetStringSlice("library_roots"),
		ChecksumOverride:     viper.GetString("checksum_override"),
		FingerprintBinary:    viper.GetString("fingerprint_binary"),
		TranscodeBinary:      viper.GetString("transcode_binary"),
		TranscodeBitrateKbps: viper.GetInt("transcode_bitrate_kbps"),
		CacheDir:             viper.GetString("cache_dir"),
		WriteBackPlayCounts:  viper.GetBool("write_back_play_counts"),
		WriteBackRatings:     viper.GetBool("write_back_ratings"),
		Workers:              viper.GetInt("workers"),
	}
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ".iopenpod-cache"
	}
	return filepath.Join(base, "iopenpod", "transcode")
}
