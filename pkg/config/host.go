package config

import (
	"net"
	"os"
	"sync"
)

// dockerHostAlias is where services on the Docker host are reachable from
// inside a container.
const dockerHostAlias = "host.docker.internal"

var inContainer = sync.OnceValue(func() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
})

// ResolveHost maps loopback hosts to the Docker host alias when the factory
// runs in a container, so a Postgres or Redis started on the developer
// machine stays reachable with the default configuration.
func ResolveHost(host string) string {
	return resolveHost(host, inContainer())
}

func resolveHost(host string, containerized bool) string {
	if !containerized {
		return host
	}
	if host == "localhost" {
		return dockerHostAlias
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return dockerHostAlias
	}
	return host
}
