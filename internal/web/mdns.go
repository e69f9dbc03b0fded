package web

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"
)

// LocalControlService is the DNS-SD service type of ESP local control.
const LocalControlService = "_esp_local_ctrl._tcp"

// Advertiser publishes the local control API over mDNS.
type Advertiser struct {
	server *zeroconf.Server
	logger *slog.Logger
}

// Advertise registers instance for the API listening on addr. The node ID
// goes in the TXT record so phone apps can match the cloud node.
func Advertise(instance, addr, nodeID string, logger *slog.Logger) (*Advertiser, error) {
	port, err := listenPort(addr)
	if err != nil {
		return nil, err
	}
	server, err := zeroconf.Register(instance, LocalControlService, "local.", port, txtRecords(nodeID), nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	logger = logger.With("component", "mdns")
	logger.Info("local control advertised", "instance", instance, "service", LocalControlService, "port", port)
	return &Advertiser{server: server, logger: logger}, nil
}

// Shutdown withdraws the service.
func (a *Advertiser) Shutdown() {
	a.server.Shutdown()
	a.logger.Info("local control withdrawn")
}

func txtRecords(nodeID string) []string {
	return []string{
		"node_id=" + nodeID,
		"version_endpoint=/api/version",
		"params_endpoint=/api/node/params",
	}
}

func listenPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port in %q", addr)
	}
	return port, nil
}
