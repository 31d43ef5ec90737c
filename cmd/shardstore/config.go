package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/kjk/shardstore/mirror"
)

// Config holds the command configuration. Values come from the environment
// and can be overridden with flags.
type Config struct {
	// Dir is the root directory of the store
	Dir string

	// LogDir is where daily log and event files are written, if set
	LogDir string
	// LogServer is host:port of a server that receives logs and events
	LogServer string
	LogApiKey string

	// S3 is the object storage used by push and pull
	S3 mirror.Config
}

// LoadFromEnv loads configuration from environment variables.
// All variables are optional.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Dir:       os.Getenv("SHARDSTORE_DIR"),
		LogDir:    os.Getenv("SHARDSTORE_LOG_DIR"),
		LogServer: os.Getenv("SHARDSTORE_LOG_SERVER"),
		LogApiKey: os.Getenv("SHARDSTORE_LOG_API_KEY"),
		S3: mirror.Config{
			Access:   os.Getenv("SHARDSTORE_S3_ACCESS"),
			Secret:   os.Getenv("SHARDSTORE_S3_SECRET"),
			Bucket:   os.Getenv("SHARDSTORE_S3_BUCKET"),
			Endpoint: os.Getenv("SHARDSTORE_S3_ENDPOINT"),
			Region:   os.Getenv("SHARDSTORE_S3_REGION"),
			Prefix:   os.Getenv("SHARDSTORE_S3_PREFIX"),
		},
	}
	if v := os.Getenv("SHARDSTORE_S3_INSECURE"); v != "" {
		insecure, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SHARDSTORE_S3_INSECURE '%s': %w", v, err)
		}
		cfg.S3.Insecure = insecure
	}
	return cfg, nil
}
