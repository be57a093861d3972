package ports

import (
	"fmt"
	"strings"
)

const (
	// DefaultBase is the watermark used for an empty registry
	DefaultBase = 54321

	// Stride is how far the watermark advances per project
	Stride = 1000

	maxPort = 65535
)

// Block is the fixed set of host ports owned by one project
type Block struct {
	API       int `json:"api"`
	DB        int `json:"db"`
	Shadow    int `json:"shadow"`
	Studio    int `json:"studio"`
	Inbucket  int `json:"inbucket"`
	SMTP      int `json:"smtp"`
	POP3      int `json:"pop3"`
	Pooler    int `json:"pooler"`
	Analytics int `json:"analytics"`
	KongHTTPS int `json:"kong_https"`
}

// Allocate derives a port block from the watermark and returns the next watermark
func Allocate(watermark int) (Block, int) {
	api := watermark
	block := Block{
		API:       api,
		DB:        api + 1,
		Shadow:    api - 1,
		Studio:    api + 2,
		Inbucket:  api + 3,
		SMTP:      api + 4,
		POP3:      api + 5,
		Analytics: api + 6,
		Pooler:    api + 8,
		KongHTTPS: api + 443,
	}
	return block, watermark + Stride
}

// Role pairs a role name with its port
type Role struct {
	Name string
	Port int
}

// Roles lists the block's ports in a stable order
func (b Block) Roles() []Role {
	return []Role{
		{"api", b.API},
		{"db", b.DB},
		{"shadow", b.Shadow},
		{"studio", b.Studio},
		{"inbucket", b.Inbucket},
		{"smtp", b.SMTP},
		{"pop3", b.POP3},
		{"pooler", b.Pooler},
		{"analytics", b.Analytics},
		{"kong_https", b.KongHTTPS},
	}
}

// Validate checks every port is a usable TCP port and that no role shares a port
func (b Block) Validate() error {
	seen := make(map[int]string)
	var bad []string
	for _, r := range b.Roles() {
		if r.Port < 1 || r.Port > maxPort {
			bad = append(bad, fmt.Sprintf("%s=%d", r.Name, r.Port))
			continue
		}
		if other, ok := seen[r.Port]; ok {
			return fmt.Errorf("port %d assigned to both %s and %s", r.Port, other, r.Name)
		}
		seen[r.Port] = r.Name
	}
	if len(bad) > 0 {
		return fmt.Errorf("ports out of range 1-%d: %s", maxPort, strings.Join(bad, ", "))
	}
	return nil
}

// Overlaps reports whether two blocks share any port
func (b Block) Overlaps(other Block) bool {
	mine := make(map[int]bool)
	for _, r := range b.Roles() {
		mine[r.Port] = true
	}
	for _, r := range other.Roles() {
		if mine[r.Port] {
			return true
		}
	}
	return false
}
