package tui

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/pokeapi-client/pkg/catalog"
	"github.com/charmbracelet/bubbles/list"
)

// recordItem adapts a catalog record to the list's default delegate.
type recordItem struct {
	record catalog.Record
}

var _ list.DefaultItem = recordItem{}

// Title renders "#001 Bulbasaur".
func (i recordItem) Title() string {
	return fmt.Sprintf("#%03d %s", i.record.ID, i.record.Name)
}

// Description renders the joined types and the blurb, dropping whichever part is missing.
func (i recordItem) Description() string {
	types := strings.Join(i.record.Types, " · ")
	switch {
	case types == "":
		return i.record.Blurb
	case i.record.Blurb == "":
		return types
	default:
		return types + " — " + i.record.Blurb
	}
}

func (i recordItem) FilterValue() string {
	return i.record.Name
}

func toItems(records []catalog.Record) []list.Item {
	items := make([]list.Item, len(records))
	for i, r := range records {
		items[i] = recordItem{record: r}
	}
	return items
}
