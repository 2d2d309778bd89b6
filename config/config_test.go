package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
[autosharding]
heartbeat_delay_millis = 2000
undistributable_clusters = ["internal", "config"]

[[peers]]
address = "127.0.0.1:6000"

[[peers]]
address = "127.0.0.1:6001"
`

func TestLoadParsesAutoshardingAndPeers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shardnode.toml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HeartbeatDelay() != 2000*time.Millisecond {
		t.Fatalf("HeartbeatDelay() = %v, want 2s", cfg.HeartbeatDelay())
	}
	if len(cfg.Autosharding.UndistributableClusters) != 2 {
		t.Fatalf("UndistributableClusters = %v, want 2 entries", cfg.Autosharding.UndistributableClusters)
	}
	if len(cfg.Peers) != 2 || cfg.Peers[0].Address != "127.0.0.1:6000" || cfg.Peers[1].Address != "127.0.0.1:6001" {
		t.Fatalf("Peers = %+v, want the two seed addresses", cfg.Peers)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error loading a missing config file")
	}
}
