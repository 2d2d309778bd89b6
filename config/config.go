// Package config loads the autosharded storage core's TOML
// configuration surface (spec.md §6): undistributable cluster names,
// the base heartbeat interval, and the peer seed list a node joins the
// ring through.
package config

import (
	"os"
	"time"

	"github.com/naoina/toml"

	"github.com/orientcore/shardstore/shardingerr"
)

// Peer is one entry in the seed list a node dials on startup to join
// the ring.
type Peer struct {
	Address string `toml:"address"`
}

// Autosharding is the `[autosharding]` table: the configuration
// surface spec.md §6 names for the routing core and leader checker.
type Autosharding struct {
	HeartbeatDelayMillis    int64    `toml:"heartbeat_delay_millis"`
	UndistributableClusters []string `toml:"undistributable_clusters"`
}

// Config is the full TOML document this core loads on startup.
type Config struct {
	Autosharding Autosharding `toml:"autosharding"`
	Peers        []Peer       `toml:"peers"`
}

// HeartbeatDelay returns the configured base heartbeat interval as a
// time.Duration; the leader checker applies its own 1.30 grace factor
// on top of this.
func (c Config) HeartbeatDelay() time.Duration {
	return time.Duration(c.Autosharding.HeartbeatDelayMillis) * time.Millisecond
}

// Load reads and parses a TOML configuration file at path, in the
// teacher's own naoina/toml-based config loading style.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, shardingerr.WithDetail(shardingerr.ErrLocalStorage, "opening config file: "+err.Error())
	}
	defer f.Close()

	var cfg Config
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, shardingerr.WithDetail(shardingerr.ErrSerialization, "decoding config file: "+err.Error())
	}
	return cfg, nil
}
