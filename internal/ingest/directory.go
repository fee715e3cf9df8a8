package ingest

import (
	"strings"

	"forecourt/backend/internal/domain"
)

// Directory maps attendant tags to display names. It is built from
// configuration so a store can be re-staffed without a rebuild.
type Directory struct {
	names map[string]string
}

func NewDirectory(names map[string]string) *Directory {
	d := &Directory{names: make(map[string]string, len(names))}
	for tag, name := range names {
		tag = strings.ToUpper(strings.TrimSpace(tag))
		name = strings.TrimSpace(name)
		if tag == "" || name == "" {
			continue
		}
		d.names[tag] = name
	}
	return d
}

// Resolve returns the name for id, or domain.UnknownAttendant.
func (d *Directory) Resolve(id string) string {
	if d == nil {
		return domain.UnknownAttendant
	}
	if name, ok := d.names[strings.ToUpper(strings.TrimSpace(id))]; ok {
		return name
	}
	return domain.UnknownAttendant
}

func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}
