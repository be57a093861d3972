package lifecycle

import (
	"fmt"
	"net"

	"github.com/thatjpcsguy/supamulti/internal/ports"
)

// Endpoint is a user-facing address of a running project
type Endpoint struct {
	Name string
	URL  string
}

// Endpoints builds the access URLs of a project on host
func Endpoints(host string, b ports.Block) []Endpoint {
	return []Endpoint{
		{"API", fmt.Sprintf("http://%s:%d", host, b.API)},
		{"API (https)", fmt.Sprintf("https://%s:%d", host, b.KongHTTPS)},
		{"Studio", fmt.Sprintf("http://%s:%d", host, b.Studio)},
		{"Database", fmt.Sprintf("postgresql://postgres@%s:%d/postgres", host, b.DB)},
		{"Pooler", fmt.Sprintf("postgresql://postgres@%s:%d/postgres", host, b.Pooler)},
		{"Inbucket", fmt.Sprintf("http://%s:%d", host, b.Inbucket)},
		{"Analytics", fmt.Sprintf("http://%s:%d", host, b.Analytics)},
	}
}

// PrimaryIP returns the address of the interface used for outbound traffic,
// or "localhost" when it cannot be determined. No packet is sent.
func PrimaryIP() string {
	conn, err := net.Dial("udp", "192.0.2.1:80")
	if err != nil {
		return "localhost"
	}
	defer func() { _ = conn.Close() }()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil || addr.IP.IsUnspecified() {
		return "localhost"
	}
	return addr.IP.String()
}
