package materialize

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/thatjpcsguy/supamulti/internal/ports"
)

// cliSetting is one port key inside a dotted config.toml section
type cliSetting struct {
	section string
	key     string
	role    string
}

var cliSettings = []cliSetting{
	{"api", "port", "api"},
	{"db", "port", "db"},
	{"db", "shadow_port", "shadow"},
	{"db.pooler", "port", "pooler"},
	{"studio", "port", "studio"},
	{"inbucket", "port", "inbucket"},
	{"inbucket", "smtp_port", "smtp"},
	{"inbucket", "pop3_port", "pop3"},
	{"analytics", "port", "analytics"},
}

// RewriteCLIConfig sets the port keys of the CLI config sections that exist.
// Sections absent from the document are returned, not created.
func RewriteCLIConfig(data []byte, block ports.Block) ([]byte, []string, error) {
	doc := make(map[string]interface{})
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config.toml: %w", err)
	}

	var missing []string
	seenMissing := make(map[string]bool)
	for _, s := range cliSettings {
		table := lookupTable(doc, s.section)
		if table == nil {
			if !seenMissing[s.section] {
				seenMissing[s.section] = true
				missing = append(missing, s.section)
			}
			continue
		}
		table[s.key] = int64(portForRole(block, s.role))
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, nil, fmt.Errorf("failed to encode config.toml: %w", err)
	}

	return buf.Bytes(), missing, nil
}

func lookupTable(doc map[string]interface{}, dotted string) map[string]interface{} {
	current := doc
	for _, part := range strings.Split(dotted, ".") {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			return nil
		}
		current = next
	}
	return current
}
