package storage

import "time"

const (
	defaultMongoConnectTimeout = 10 * time.Second
	defaultMongoDatabase       = "clipriver"
)

// MongoConfig describes how the repository connects to its MongoDB
// deployment. Zero values fall back to sensible defaults; only URI is
// mandatory.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	Options        Options
}

func (cfg MongoConfig) withDefaults() MongoConfig {
	if cfg.Database == "" {
		cfg.Database = defaultMongoDatabase
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultMongoConnectTimeout
	}
	return cfg
}
