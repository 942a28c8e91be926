// Package sheet moves tiles in and out of spreadsheets,
// so the map can be edited in bulk with office software.
//
// A workbook has one sheet named "tiles".
// Its first row names the columns with the JSON field names of a tile;
// every following row is one tile.
package sheet

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Travis-Britz/hexboard"
	"github.com/tealeg/xlsx"
)

// SheetName is the name of the sheet holding the tiles.
const SheetName = "tiles"

// Columns lists the column headers in export order.
var Columns = []string{
	"q", "r", "color", "label", "title", "info", "image",
	"lord", "lordInfo", "lordVideo", "heraldry", "effect",
	"isCapital", "military", "economy", "agriculture",
}

// Export writes tiles as an xlsx workbook to w.
func Export(w io.Writer, tiles []hexboard.Tile) error {
	file, err := build(tiles)
	if err != nil {
		return fmt.Errorf("sheet.Export: %w", err)
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("sheet.Export: %w", err)
	}
	return nil
}

// ExportFile writes tiles to a workbook at path.
func ExportFile(path string, tiles []hexboard.Tile) error {
	file, err := build(tiles)
	if err != nil {
		return fmt.Errorf("sheet.ExportFile: %w", err)
	}
	if err := file.Save(path); err != nil {
		return fmt.Errorf("sheet.ExportFile: %w", err)
	}
	return nil
}

func build(tiles []hexboard.Tile) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(SheetName)
	if err != nil {
		return nil, err
	}
	header := sheet.AddRow()
	for _, name := range Columns {
		header.AddCell().SetString(name)
	}
	for _, t := range tiles {
		t = t.Normalize()
		var capital hexboard.Capital
		if t.Capital != nil {
			capital = *t.Capital
		}
		row := sheet.AddRow()
		row.AddCell().SetInt(t.Q)
		row.AddCell().SetInt(t.R)
		for _, s := range []string{t.Color, t.Label, t.Title, t.Info, t.Image, t.Lord, t.LordInfo, t.LordVideo, t.Heraldry} {
			row.AddCell().SetString(s)
		}
		row.AddCell().SetBool(t.Effect)
		row.AddCell().SetBool(capital.IsCapital)
		row.AddCell().SetInt(capital.Military)
		row.AddCell().SetInt(capital.Economy)
		row.AddCell().SetInt(capital.Agriculture)
	}
	return file, nil
}

// Import reads tiles from an xlsx workbook.
// Columns may appear in any order and unknown columns are ignored;
// only q and r are required.
func Import(r io.Reader) ([]hexboard.Tile, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("sheet.Import: %w", err)
	}
	file, err := xlsx.OpenBinary(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("sheet.Import: %w", err)
	}
	tiles, err := read(file)
	if err != nil {
		return nil, fmt.Errorf("sheet.Import: %w", err)
	}
	return tiles, nil
}

// ImportFile reads tiles from the workbook at path.
func ImportFile(path string) ([]hexboard.Tile, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("sheet.ImportFile: %w", err)
	}
	tiles, err := read(file)
	if err != nil {
		return nil, fmt.Errorf("sheet.ImportFile: %s: %w", path, err)
	}
	return tiles, nil
}

func read(file *xlsx.File) ([]hexboard.Tile, error) {
	sheet, ok := file.Sheet[SheetName]
	if !ok {
		return nil, fmt.Errorf("no sheet ( %s ) found", SheetName)
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	columns := make(map[string]int)
	for i, cell := range sheet.Rows[0].Cells {
		columns[strings.TrimSpace(cell.Value)] = i
	}
	for _, required := range []string{"q", "r"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var tiles []hexboard.Tile
	for i, row := range sheet.Rows[1:] {
		if row == nil || blank(row) {
			continue
		}
		rowNum := i + 2
		value := func(name string) string {
			col, ok := columns[name]
			if !ok || col >= len(row.Cells) || row.Cells[col] == nil {
				return ""
			}
			cell := row.Cells[col]
			s, err := cell.FormattedValue()
			if err != nil {
				s = cell.Value
			}
			return strings.TrimSpace(s)
		}

		q, err := number(value("q"))
		if err != nil {
			return nil, fmt.Errorf("row %d: q: %w", rowNum, err)
		}
		r, err := number(value("r"))
		if err != nil {
			return nil, fmt.Errorf("row %d: r: %w", rowNum, err)
		}
		t := hexboard.NewTile(q, r)
		t.Color = value("color")
		t.Label = value("label")
		t.Title = value("title")
		t.Info = value("info")
		t.Image = value("image")
		t.Lord = value("lord")
		t.LordInfo = value("lordInfo")
		t.LordVideo = value("lordVideo")
		t.Heraldry = value("heraldry")
		t.Effect = truthy(value("effect"))

		if truthy(value("isCapital")) {
			c := &hexboard.Capital{IsCapital: true}
			// unreadable stats count as zero
			c.Military, _ = number(value("military"))
			c.Economy, _ = number(value("economy"))
			c.Agriculture, _ = number(value("agriculture"))
			t.Capital = c
		}
		tiles = append(tiles, t.Normalize())
	}
	return tiles, nil
}

func blank(row *xlsx.Row) bool {
	for _, cell := range row.Cells {
		if cell != nil && strings.TrimSpace(cell.Value) != "" {
			return false
		}
	}
	return true
}

// number parses integers, including the "3.0" form some spreadsheets save.
func number(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int(f), nil
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "x":
		return true
	}
	return false
}
