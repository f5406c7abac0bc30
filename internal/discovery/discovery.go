// Package discovery advertises a sketch server on the local network and
// finds one from the client side, using multicast DNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	ServiceType    = "_sketchboard._tcp"
	DefaultTimeout = 2 * time.Second
)

var ErrNotFound = errors.New("discovery: no sketch server found on the local network")

// Advertiser keeps an mDNS responder running until Shutdown.
type Advertiser struct {
	server *mdns.Server
}

// Advertise announces a server listening on port. instance defaults to the
// host name.
func Advertise(instance string, port int, info ...string) (*Advertiser, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("discovery: hostname: %w", err)
		}
		instance = host
	}
	if len(info) == 0 {
		info = []string{"sketchboard"}
	}
	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("discovery: create service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("discovery: start responder: %w", err)
	}
	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Shutdown() error {
	if a == nil || a.server == nil {
		return nil
	}
	return a.server.Shutdown()
}

// Entry is a server found on the network.
type Entry struct {
	Instance string
	Host     string
	Port     int
	Info     []string
}

// URL returns the http base URL of the entry.
func (e Entry) URL() string {
	return "http://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Browse queries the network for timeout and returns every server that
// answered with an IPv4 address.
func Browse(ctx context.Context, timeout time.Duration) ([]Entry, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	entries := make(chan *mdns.ServiceEntry, 8)
	var found []Entry
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			found = append(found, Entry{
				Instance: instanceName(e.Name),
				Host:     e.AddrV4.String(),
				Port:     e.Port,
				Info:     e.InfoFields,
			})
		}
	}()
	err := mdns.Query(&mdns.QueryParam{
		Service:     ServiceType,
		Domain:      "local",
		Timeout:     timeout,
		Entries:     entries,
		DisableIPv6: true,
	})
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("discovery: query: %w", err)
	}
	return found, nil
}

// Discover returns the first server found.
func Discover(ctx context.Context, timeout time.Duration) (Entry, error) {
	entries, err := Browse(ctx, timeout)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrNotFound
	}
	return entries[0], nil
}

// instanceName strips the service suffix from a full mDNS record name.
func instanceName(full string) string {
	name, _, _ := strings.Cut(full, "."+ServiceType)
	return strings.ReplaceAll(name, `\ `, " ")
}
