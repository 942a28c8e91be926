package board

import (
	"cmp"
	"slices"
	"strings"

	"github.com/Travis-Britz/hexboard"
	"github.com/Travis-Britz/hexboard/hexmap"
	"github.com/Travis-Britz/structures/stack"
)

// House summarizes the tiles held by one lord.
type House struct {
	Lord string `json:"lord"`

	// Territories is the number of tiles the lord holds.
	Territories int `json:"territories"`

	// Domains are the titles of the lord's tiles, in map order.
	Domains []string `json:"domains"`

	Heraldry string `json:"heraldry,omitempty"`
	Info     string `json:"info,omitempty"`
	Video    string `json:"video,omitempty"`

	// Color is the first fill color found on the lord's tiles.
	Color string `json:"color,omitempty"`

	Capitals []hexboard.Key `json:"capitals"`

	// Realms are the contiguous groups of tiles held by the lord.
	// Two tiles belong to the same realm when a path of neighboring tiles of the same lord joins them.
	Realms [][]hexboard.Key `json:"realms"`
}

// Houses groups tiles by lord.
// Tiles without a lord are left out.
// The result is ordered by territory count, largest first, and then by name.
func Houses(tiles []hexboard.Tile) []House {
	byLord := make(map[string]*House)
	holdings := make(map[string][]hexmap.Hex)
	var order []string

	for _, t := range tiles {
		lord := strings.TrimSpace(t.Lord)
		if lord == "" {
			continue
		}
		house, ok := byLord[lord]
		if !ok {
			house = &House{Lord: lord, Domains: []string{}, Capitals: []hexboard.Key{}}
			byLord[lord] = house
			order = append(order, lord)
		}
		house.Territories++
		if title := strings.TrimSpace(t.Title); title != "" {
			house.Domains = append(house.Domains, title)
		}
		if t.Heraldry != "" {
			house.Heraldry = t.Heraldry
		}
		if t.LordInfo != "" {
			house.Info = t.LordInfo
		}
		if t.LordVideo != "" {
			house.Video = t.LordVideo
		}
		if _, ok := fillColor(t.Color); ok && house.Color == "" {
			house.Color = t.Color
		}
		if t.IsCapital() {
			house.Capitals = append(house.Capitals, t.Key())
		}
		holdings[lord] = append(holdings[lord], hexmap.Hex{Q: t.Q, R: t.R})
	}

	houses := make([]House, 0, len(order))
	for _, lord := range order {
		house := byLord[lord]
		for _, realm := range realms(holdings[lord]) {
			keys := make([]hexboard.Key, len(realm))
			for i, h := range realm {
				keys[i] = hexboard.MakeKey(h.Q, h.R)
			}
			house.Realms = append(house.Realms, keys)
		}
		houses = append(houses, *house)
	}
	slices.SortStableFunc(houses, func(a, b House) int {
		if a.Territories != b.Territories {
			return b.Territories - a.Territories
		}
		return cmp.Compare(a.Lord, b.Lord)
	})
	return houses
}

// realms splits hexes into connected groups with a flood fill.
// Groups are returned in the order their first hex appears in hexes.
func realms(hexes []hexmap.Hex) [][]hexmap.Hex {
	held := make(map[hexmap.Hex]bool, len(hexes))
	for _, h := range hexes {
		held[h] = true
	}

	frontier := &stack.Stack[hexmap.Hex]{}
	visited := make(map[hexmap.Hex]bool, len(hexes))
	var groups [][]hexmap.Hex

	for _, start := range hexes {
		if visited[start] {
			continue
		}
		visited[start] = true
		group := []hexmap.Hex{start}
		for current, more := start, true; more; current, more = frontier.Pop() {
			for _, next := range current.Neighbors() {
				if !held[next] || visited[next] {
					continue
				}
				visited[next] = true
				group = append(group, next)
				frontier.Push(next)
			}
		}
		groups = append(groups, group)
	}
	return groups
}
