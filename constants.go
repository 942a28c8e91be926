package hexboard

// Collection names in the document store.
const (
	TileCollection = "hexTiles"
)

// Transparent is the color sentinel for a tile without fill.
const Transparent = "transparent"

// TileSchemaVersion is written with every tile.
// Version 1 tiles had no label, heraldry or capital fields.
const TileSchemaVersion = 2

// MaxCapitalStat is the highest value of a capital stat.
const MaxCapitalStat = 5

// Default logical grid of the world map.
const (
	DefaultGridCols = 25
	DefaultGridRows = 14
)
