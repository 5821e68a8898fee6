// Package filter holds the chip selections of the session list and applies them to rows
package filter

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shehryarbajwa/browserkube-console/internal/format"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// Category names a chip group. Browser categories match the catalog browser name.
type Category string

const (
	Chrome           Category = "chrome"
	Firefox          Category = "firefox"
	Edge             Category = "edge"
	ScreenResolution Category = "screenResolution"
	Auto             Category = "auto"
	Manual           Category = "manual"
)

// Categories lists the chip groups in display order
var Categories = []Category{Chrome, Firefox, Edge, ScreenResolution, Auto, Manual}

// catalogDriven groups are rebuilt from the browser catalog; the rest are mode toggles
func catalogDriven(c Category) bool {
	switch c {
	case Chrome, Firefox, Edge, ScreenResolution:
		return true
	}
	return false
}

type chip struct {
	label  string
	order  []string
	values map[string]bool
}

func (ch *chip) set(value string, on bool) {
	if _, ok := ch.values[value]; !ok {
		ch.order = append(ch.order, value)
	}
	ch.values[value] = on
}

func (ch *chip) selected() []string {
	var out []string
	for _, v := range ch.order {
		if ch.values[v] {
			out = append(out, v)
		}
	}
	return out
}

// Chips is the selection state of every chip group
type Chips struct {
	mu    sync.RWMutex
	chips map[Category]*chip
}

// NewChips creates empty chip groups
func NewChips() *Chips {
	c := &Chips{chips: make(map[Category]*chip, len(Categories))}
	for _, cat := range Categories {
		label := format.Title(string(cat))
		if cat == ScreenResolution {
			label = ""
		}
		c.chips[cat] = &chip{label: label, values: map[string]bool{}}
	}
	return c
}

// Populate resets the catalog-driven groups to the versions and resolutions the farm offers,
// all unselected
func (c *Chips) Populate(browsers []models.Browser) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for cat, ch := range c.chips {
		if catalogDriven(cat) {
			ch.order = nil
			ch.values = map[string]bool{}
		}
	}

	resolutions := c.chips[ScreenResolution]
	for _, b := range browsers {
		ch, ok := c.chips[Category(b.Name)]
		if !ok || !catalogDriven(Category(b.Name)) || Category(b.Name) == ScreenResolution {
			continue
		}
		ch.set(b.Version, false)
		for _, r := range b.Resolutions {
			resolutions.set(r, false)
		}
	}
}

// Values lists every value of a group with its selection flag, in catalog order
func (c *Chips) Values(cat Category) []Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.chips[cat]
	if !ok {
		return nil
	}
	out := make([]Value, 0, len(ch.order))
	for _, v := range ch.order {
		out = append(out, Value{Name: v, Selected: ch.values[v]})
	}
	return out
}

// Value is one selectable entry of a chip group
type Value struct {
	Name     string
	Selected bool
}

// Select toggles one value of a group. Mode groups only know their own title ("Auto").
func (c *Chips) Select(cat Category, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.chips[cat]
	if !ok {
		return
	}
	ch.set(value, !ch.values[value])
}

// Enable switches a mode group on; catalog groups are left alone
func (c *Chips) Enable(cat Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.chips[cat]
	if !ok || catalogDriven(cat) {
		return
	}
	ch.order = nil
	ch.values = map[string]bool{}
	ch.set(format.Title(string(cat)), true)
}

// SelectAll sets every value of a group
func (c *Chips) SelectAll(cat Category, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.chips[cat]; ok {
		for _, v := range ch.order {
			ch.values[v] = on
		}
	}
}

// Remove deselects one value
func (c *Chips) Remove(cat Category, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.chips[cat]; ok {
		if _, known := ch.values[value]; known {
			ch.values[value] = false
		}
	}
}

// Clear deselects a whole group
func (c *Chips) Clear(cat Category) {
	c.SelectAll(cat, false)
}

// ClearAll deselects every group
func (c *Chips) ClearAll() {
	for _, cat := range Categories {
		c.Clear(cat)
	}
}

// Counter is the number of selected values in a group
func (c *Chips) Counter(cat Category) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ch, ok := c.chips[cat]; ok {
		return len(ch.selected())
	}
	return 0
}

// Filter is category -> selected values; groups with nothing selected are absent
type Filter map[Category][]string

// Filter builds the active filter from the selections
func (c *Chips) Filter() Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := Filter{}
	for cat, ch := range c.chips {
		if sel := ch.selected(); len(sel) > 0 {
			out[cat] = sel
		}
	}
	return out
}

// Label is a rendered chip for the filter bar
type Label struct {
	Category Category
	Text     string
}

// Labels renders the selected groups in display order, long selections summarized
func (c *Chips) Labels() []Label {
	f := c.Filter()
	var out []Label
	for _, cat := range Categories {
		if values, ok := f[cat]; ok {
			out = append(out, Label{Category: cat, Text: Summarize(values)})
		}
	}
	return out
}

// Summarize joins up to three values. Longer selections keep the shortest values
// (two if three would reach 25 characters) and append the remaining count.
func Summarize(values []string) string {
	if len(values) <= 3 {
		return strings.Join(values, ", ")
	}
	sorted := append([]string(nil), values...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) < len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})

	keep := 3
	if len(strings.Join(sorted[:3], ",")) >= 25 {
		keep = 2
	}
	return strings.Join(sorted[:keep], ", ") + " ... + " + strconv.Itoa(len(sorted)-keep)
}
