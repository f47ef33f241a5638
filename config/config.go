// Package config resolves runtime settings from flags, environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nixxel-company-limited/escpos-bt-server/adapter"
	"github.com/nixxel-company-limited/escpos-bt-server/gateway"
	"github.com/nixxel-company-limited/escpos-bt-server/server"
	"github.com/nixxel-company-limited/escpos-bt-server/store"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Setting keys. The environment variable for a key is its upper-case form.
const (
	KeyServerAddress = "server_address"
	KeyStorePath     = "store_path"
	KeyRFCOMMChannel = "rfcomm_channel"
	KeyBaudRate      = "baud_rate"
	KeyStatusTimeout = "status_timeout"
	KeyAckMode       = "ack_mode"
	KeyFeedLines     = "feed_lines"
	KeyPaperWidth    = "paper_width"
)

const (
	DefaultServerAddress = "127.0.0.1:8080"
	// DefaultPaperWidth is the printable width of 58 mm paper in dots
	DefaultPaperWidth = 384
)

// Config holds the resolved settings
type Config struct {
	ServerAddress string
	StorePath     string
	RFCOMMChannel int
	BaudRate      int
	StatusTimeout time.Duration
	AckMode       server.AckMode
	FeedLines     byte
	PaperWidth    int
}

// flagKeys maps command-line flag names to setting keys
var flagKeys = map[string]string{
	"server-address": KeyServerAddress,
	"store-path":     KeyStorePath,
	"rfcomm-channel": KeyRFCOMMChannel,
	"baud-rate":      KeyBaudRate,
	"status-timeout": KeyStatusTimeout,
	"ack-mode":       KeyAckMode,
	"feed-lines":     KeyFeedLines,
	"paper-width":    KeyPaperWidth,
}

// RegisterFlags adds the --config flag and one flag per setting to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (toml, yaml or json)")
	fs.String("server-address", DefaultServerAddress, "loopback address the job listener binds to")
	fs.String("store-path", store.DefaultPath(), "file holding the selected printer address")
	fs.Int("rfcomm-channel", adapter.DefaultRFCOMMChannel, "RFCOMM channel of the printer's serial port service")
	fs.Int("baud-rate", adapter.DefaultBaudRate, "baud rate for serial printers")
	fs.Duration("status-timeout", gateway.DefaultStatusTimeout, "how long to wait for a status reply")
	fs.String("ack-mode", server.AckOnReceipt.String(), "when jobs are acknowledged: receipt or completion")
	fs.Uint8("feed-lines", server.DefaultFeedLines, "lines fed before each cut")
	fs.Int("paper-width", DefaultPaperWidth, "printable width in dots for images")
}

// Load resolves the settings. Precedence is flags set on the command line,
// then environment, then the config file, then defaults. fs must have been
// prepared with RegisterFlags and parsed.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(KeyServerAddress, DefaultServerAddress)
	v.SetDefault(KeyStorePath, store.DefaultPath())
	v.SetDefault(KeyRFCOMMChannel, adapter.DefaultRFCOMMChannel)
	v.SetDefault(KeyBaudRate, adapter.DefaultBaudRate)
	v.SetDefault(KeyStatusTimeout, gateway.DefaultStatusTimeout)
	v.SetDefault(KeyAckMode, server.AckOnReceipt.String())
	v.SetDefault(KeyFeedLines, server.DefaultFeedLines)
	v.SetDefault(KeyPaperWidth, DefaultPaperWidth)

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}

		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	var errs []error

	cfg := Config{
		ServerAddress: strings.TrimSpace(v.GetString(KeyServerAddress)),
		StorePath:     strings.TrimSpace(v.GetString(KeyStorePath)),
		BaudRate:      v.GetInt(KeyBaudRate),
		StatusTimeout: v.GetDuration(KeyStatusTimeout),
		PaperWidth:    v.GetInt(KeyPaperWidth),
	}

	if cfg.ServerAddress == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyServerAddress))
	}
	if cfg.StorePath == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyStorePath))
	}

	channel := v.GetInt(KeyRFCOMMChannel)
	if channel < 1 || channel > 30 {
		errs = append(errs, fmt.Errorf("%s must be between 1 and 30, got %d", KeyRFCOMMChannel, channel))
	}
	cfg.RFCOMMChannel = channel

	if cfg.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyBaudRate, cfg.BaudRate))
	}
	if cfg.StatusTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyStatusTimeout, cfg.StatusTimeout))
	}

	mode, err := server.ParseAckMode(strings.ToLower(strings.TrimSpace(v.GetString(KeyAckMode))))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.AckMode = mode

	feed := v.GetInt(KeyFeedLines)
	if feed < 0 || feed > 255 {
		errs = append(errs, fmt.Errorf("%s must be between 0 and 255, got %d", KeyFeedLines, feed))
	}
	cfg.FeedLines = byte(feed)

	if cfg.PaperWidth < 8 {
		errs = append(errs, fmt.Errorf("%s must be at least 8 dots, got %d", KeyPaperWidth, cfg.PaperWidth))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
