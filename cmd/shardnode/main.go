// shardnode boots a single peer of the autosharded record storage
// core: a local cluster, a DHT node, a ring joined from a seed list,
// the autosharded routing layer, a leader checker, and a grpc server
// answering the other peers' record RPCs.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"

	"github.com/orientcore/shardstore/autosharded"
	"github.com/orientcore/shardstore/config"
	"github.com/orientcore/shardstore/dht"
	"github.com/orientcore/shardstore/leader"
	"github.com/orientcore/shardstore/lhpe"
	"github.com/orientcore/shardstore/log"
	"github.com/orientcore/shardstore/ringid"
	"github.com/orientcore/shardstore/transport/loopback"
	"github.com/orientcore/shardstore/transport/rpcgob"
)

var (
	app *cli.App

	addressFlag = &cli.StringFlag{
		Name:  "address",
		Usage: "address this peer advertises on the ring and serves grpc from, e.g. 127.0.0.1:6000",
		Value: "127.0.0.1:6000",
	}
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to the node's TOML configuration file",
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "directory this peer persists its cluster journals under; empty keeps storage in memory only",
	}
	flushIntervalFlag = &cli.DurationFlag{
		Name:  "flush-interval",
		Usage: "how often to drain async writeback queues to the journal",
		Value: 5 * time.Second,
	}
)

func init() {
	app = &cli.App{
		Name:  "shardnode",
		Usage: "run one peer of the autosharded record storage core",
		Flags: []cli.Flag{addressFlag, configFlag, dataDirFlag, flushIntervalFlag},
		Action: runNode,
	}
}

func runNode(c *cli.Context) error {
	address := c.String(addressFlag.Name)

	cfg := config.Config{
		Autosharding: config.Autosharding{HeartbeatDelayMillis: 2000},
	}
	if path := c.String(configFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Crit("loading config failed", "error", err)
			return err
		}
		cfg = loaded
	}

	storage := lhpe.NewStorage(c.String(dataDirFlag.Name))
	if err := storage.Open(); err != nil {
		log.Crit("opening storage failed", "error", err)
		return err
	}
	defer storage.Close()

	flushInterval := c.Duration(flushIntervalFlag.Name)
	flushDone := make(chan struct{})
	defer close(flushDone)
	go func() {
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := storage.Flush(); err != nil {
					log.Warn("periodic flush failed", "error", err)
				}
			case <-flushDone:
				return
			}
		}
	}()

	undistributedIDs := make([]int16, 0, len(cfg.Autosharding.UndistributableClusters))
	for _, name := range cfg.Autosharding.UndistributableClusters {
		id, err := storage.AddCluster(name)
		if err != nil {
			log.Crit("adding undistributed cluster failed", "name", name, "error", err)
			return err
		}
		undistributedIDs = append(undistributedIDs, id)
	}
	if _, err := storage.AddCluster("documents"); err != nil {
		log.Crit("adding default cluster failed", "error", err)
		return err
	}

	localID := ringid.FromAddress(address)
	ring := dht.NewRing()
	localNode := loopback.New(localID, address, storage, nil)
	server := dht.NewServerInstance(localNode, ring)
	ring.Join(localNode)

	ctx := context.Background()
	for _, peer := range cfg.Peers {
		if peer.Address == address {
			continue
		}
		peerID := ringid.FromAddress(peer.Address)
		client, err := rpcgob.Dial(ctx, peerID, peer.Address)
		if err != nil {
			log.Warn("dialing peer failed", "address", peer.Address, "error", err)
			continue
		}
		ring.Join(client)
		log.Info("joined peer", "address", peer.Address, "id", peerID.Hex())
	}

	router := autosharded.New(storage, server, undistributedIDs)

	manager := &logOnlyManager{peerID: address}
	clock := &serverHeartbeatClock{}
	checker := leader.NewChecker(address, cfg.HeartbeatDelay(), clock, manager)
	checker.Start(cfg.HeartbeatDelay())
	defer checker.Stop()

	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&rpcgob.ServiceDesc, &rpcgob.Server{Local: &routerNode{id: localID, address: address, router: router, server: server}})

	log.Info("shardnode listening", "address", address, "storage_type", router.StorageType())
	return serve(grpcServer, address)
}

// logOnlyManager is the demo CLI's leader.Manager: it logs a takeover
// rather than running a real election protocol.
type logOnlyManager struct {
	peerID string
}

func (m *logOnlyManager) BecameLeader(peerID string) {
	log.Warn("leader checker observed a stale peer, taking over", "peer", peerID)
}

// serverHeartbeatClock is a placeholder PeerClock that never reports a
// stale heartbeat; a real deployment would update it from inbound
// heartbeat RPCs.
type serverHeartbeatClock struct{}

func (serverHeartbeatClock) LastHeartbeat(peerID string) time.Time { return time.Now() }

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
