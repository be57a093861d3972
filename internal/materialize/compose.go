package materialize

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thatjpcsguy/supamulti/internal/ports"
)

// PortBinding maps a well-known container-side port to the role whose host port replaces it
type PortBinding struct {
	Container int
	Role      string
}

// ComposeBindings lists the container ports rewritten in docker-compose.yml
var ComposeBindings = []PortBinding{
	{8000, "api"},
	{8443, "kong_https"},
	{5432, "db"},
	{3000, "studio"},
	{9000, "inbucket"},
	{4000, "analytics"},
	{6543, "pooler"},
}

// ComposeReport describes what a compose rewrite changed
type ComposeReport struct {
	ContainerNames []string    // container names renamed by this pass, sorted
	Rewritten      map[int]int // container port -> number of mappings rewritten
	Unmatched      []int       // bound container ports that never appeared
}

// RewriteCompose prefixes every container_name with "<projectID>-" and points the
// host side of each known port mapping at the project's block. Rewriting its own
// output again changes nothing.
func RewriteCompose(data []byte, projectID string, block ports.Block) ([]byte, *ComposeReport, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse compose file: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("compose file is not a mapping")
	}

	hostPorts := make(map[int]int)
	for _, b := range ComposeBindings {
		hostPorts[b.Container] = portForRole(block, b.Role)
	}

	report := &ComposeReport{Rewritten: make(map[int]int)}

	services := mappingValue(doc.Content[0], "services")
	if services != nil && services.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(services.Content); i += 2 {
			svc := services.Content[i+1]
			if svc.Kind != yaml.MappingNode {
				continue
			}

			if name := mappingValue(svc, "container_name"); name != nil && name.Kind == yaml.ScalarNode {
				// names already carrying the prefix come from an earlier rewrite
				if !strings.HasPrefix(name.Value, projectID+"-") {
					name.Value = projectID + "-" + name.Value
					report.ContainerNames = append(report.ContainerNames, name.Value)
				}
			}

			if list := mappingValue(svc, "ports"); list != nil && list.Kind == yaml.SequenceNode {
				for _, item := range list.Content {
					if container, ok := rewritePort(item, hostPorts); ok {
						report.Rewritten[container]++
					}
				}
			}
		}
	}

	for _, b := range ComposeBindings {
		if report.Rewritten[b.Container] == 0 {
			report.Unmatched = append(report.Unmatched, b.Container)
		}
	}
	sort.Strings(report.ContainerNames)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, nil, fmt.Errorf("failed to encode compose file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to encode compose file: %w", err)
	}

	return buf.Bytes(), report, nil
}

func portForRole(block ports.Block, role string) int {
	for _, r := range block.Roles() {
		if r.Name == role {
			return r.Port
		}
	}
	return 0
}

// mappingValue returns the value node for key in a mapping node
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// rewritePort updates one entry of a service's ports list in place
func rewritePort(item *yaml.Node, hostPorts map[int]int) (int, bool) {
	switch item.Kind {
	case yaml.ScalarNode:
		spec, ok := parseShortPort(item.Value)
		if !ok {
			return 0, false
		}
		host, known := hostPorts[spec.container]
		if !known {
			return 0, false
		}
		spec.host = strconv.Itoa(host)
		item.Value = spec.String()
		if item.Style == 0 {
			item.Style = yaml.DoubleQuotedStyle
		}
		item.Tag = "!!str"
		return spec.container, true

	case yaml.MappingNode:
		target := mappingValue(item, "target")
		if target == nil {
			return 0, false
		}
		container, err := strconv.Atoi(target.Value)
		if err != nil {
			return 0, false
		}
		host, known := hostPorts[container]
		if !known {
			return 0, false
		}
		if published := mappingValue(item, "published"); published != nil {
			published.Value = strconv.Itoa(host)
			published.Tag = "!!str"
			published.Style = yaml.DoubleQuotedStyle
		} else {
			item.Content = append(item.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "published"},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: strconv.Itoa(host)},
			)
		}
		return container, true
	}

	return 0, false
}

// shortPort is the "[ip:][host:]container[/proto]" form of a port mapping
type shortPort struct {
	ip        string
	host      string
	container int
	proto     string
}

func (p shortPort) String() string {
	var b strings.Builder
	if p.ip != "" {
		b.WriteString(p.ip)
		b.WriteByte(':')
	}
	if p.host != "" {
		b.WriteString(p.host)
		b.WriteByte(':')
	}
	b.WriteString(strconv.Itoa(p.container))
	if p.proto != "" {
		b.WriteByte('/')
		b.WriteString(p.proto)
	}
	return b.String()
}

func parseShortPort(s string) (shortPort, bool) {
	var p shortPort
	body := s
	if idx := strings.LastIndex(body, "/"); idx >= 0 && !strings.Contains(body[idx:], "}") {
		p.proto = body[idx+1:]
		body = body[:idx]
	}

	parts := splitPortParts(body)
	container, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		// ranges and interpolated container ports are left alone
		return p, false
	}
	p.container = container

	switch len(parts) {
	case 1:
	case 2:
		p.host = parts[0]
	case 3:
		p.ip, p.host = parts[0], parts[1]
	default:
		return p, false
	}
	return p, true
}

// splitPortParts splits on ':' outside of ${...} interpolations and [ipv6] brackets
func splitPortParts(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '$' && i+1 < len(s) && s[i+1] == '{':
			depth++
			i++
		case s[i] == '[':
			depth++
		case (s[i] == '}' || s[i] == ']') && depth > 0:
			depth--
		case s[i] == ':' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
