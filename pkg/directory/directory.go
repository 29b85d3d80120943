// Package directory maps Splitwise group ids to names for the duration of one
// run and derives the source tag of an expense from its group.
package directory

import (
	"strings"

	"github.com/yurifrl/splitsync/pkg/models"
)

const (
	TagPrefix       = "source-"
	TagUnknownGroup = TagPrefix + "unknown-group"
	TagUngrouped    = TagPrefix + "ungrouped"
)

// Directory is read-only once built.
type Directory struct {
	names map[int64]string
	ids   map[string]int64
}

// Build indexes groups in both directions. When two groups share a name the
// later one wins in the name index.
func Build(groups []models.Group) *Directory {
	d := &Directory{
		names: make(map[int64]string, len(groups)),
		ids:   make(map[string]int64, len(groups)),
	}
	for _, g := range groups {
		d.names[g.ID] = g.Name
		d.ids[g.Name] = g.ID
	}
	return d
}

func (d *Directory) Name(id int64) (string, bool) {
	name, ok := d.names[id]
	return name, ok
}

func (d *Directory) ID(name string) (int64, bool) {
	id, ok := d.ids[name]
	return id, ok
}

func (d *Directory) Len() int { return len(d.names) }

// Tag returns the source tag for an expense in groupID (nil for no group).
func (d *Directory) Tag(groupID *int64) string {
	if groupID == nil {
		return TagUngrouped
	}
	name, ok := d.names[*groupID]
	if !ok {
		return TagUnknownGroup
	}
	return TagPrefix + strings.ReplaceAll(name, " ", "-")
}

// Tags returns the ordered tag set of an expense.
func (d *Directory) Tags(groupID *int64) []string {
	return []string{d.Tag(groupID)}
}
