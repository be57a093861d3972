package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/thatjpcsguy/supamulti/internal/ports"
)

// Project represents one registered instance
type Project struct {
	ID        string      `json:"-"`
	Directory string      `json:"directory"`
	Ports     ports.Block `json:"ports"`
}

// Registry is the in-memory form of the registry document.
// Project keys keep the order they were inserted in (or read from disk in).
type Registry struct {
	LastPortAssigned int

	order    []string
	projects map[string]Project
}

// New returns an empty registry starting at the given watermark
func New(watermark int) *Registry {
	return &Registry{
		LastPortAssigned: watermark,
		projects:         make(map[string]Project),
	}
}

// Exists reports whether a project id is registered
func (r *Registry) Exists(id string) bool {
	_, ok := r.projects[id]
	return ok
}

// Get returns the record for a project
func (r *Registry) Get(id string) (Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return p, nil
}

// All returns every project in insertion order
func (r *Registry) All() []Project {
	out := make([]Project, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.projects[id])
	}
	return out
}

// Len returns the number of registered projects
func (r *Registry) Len() int {
	return len(r.order)
}

// Put registers a new project; existing ids are never overwritten
func (r *Registry) Put(p Project) error {
	if r.Exists(p.ID) {
		return fmt.Errorf("%w: %s", ErrProjectExists, p.ID)
	}
	r.projects[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

// Delete removes a project record
func (r *Registry) Delete(id string) error {
	if !r.Exists(id) {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	delete(r.projects, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Allocate hands out the next port block and advances the watermark
func (r *Registry) Allocate() ports.Block {
	block, next := ports.Allocate(r.LastPortAssigned)
	r.LastPortAssigned = next
	return block
}

// MarshalJSON writes projects in insertion order
func (r *Registry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"projects":{`)
	for i, id := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		rec, err := json.Marshal(r.projects[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(rec)
	}
	fmt.Fprintf(&buf, `},"last_port_assigned":%d}`, r.LastPortAssigned)
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the document, keeping project key order
func (r *Registry) UnmarshalJSON(data []byte) error {
	var doc struct {
		Projects         json.RawMessage `json:"projects"`
		LastPortAssigned int             `json:"last_port_assigned"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	r.LastPortAssigned = doc.LastPortAssigned
	r.order = nil
	r.projects = make(map[string]Project)

	if len(doc.Projects) == 0 || string(doc.Projects) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(doc.Projects))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("projects must be an object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in projects", tok)
		}

		var p Project
		if err := dec.Decode(&p); err != nil {
			return fmt.Errorf("project %s: %w", id, err)
		}
		p.ID = id

		if _, seen := r.projects[id]; !seen {
			r.order = append(r.order, id)
		}
		r.projects[id] = p
	}

	_, err = dec.Token()
	return err
}
