package config

import (
	"os"
	"sync"
)

var inDocker = sync.OnceValue(func() bool {
	// Docker creates /.dockerenv in every container.
	_, err := os.Stat("/.dockerenv")
	return err == nil
})

// IsRunningInDocker reports whether the process runs inside a Docker
// container. The probe runs once and is cached.
func IsRunningInDocker() bool {
	return inDocker()
}

// ResolveHostForDocker maps loopback hosts to host.docker.internal when
// running in a container, so a database on the host machine stays
// reachable with the same config. Non-loopback hosts pass through.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1":
		return "host.docker.internal"
	}
	return host
}
