package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/muurk/tuyalocal/internal/entity"
)

// FormatAttributes renders attributes as "key=value" pairs in key order
func FormatAttributes(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatValue(attrs[k]))
	}
	return strings.Join(parts, " ")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case entity.HSColor:
		return fmt.Sprintf("%.0f/%.0f", val.Hue, val.Saturation)
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}

// RenderDeviceRow renders one device as a single line
func RenderDeviceRow(s entity.Snapshot, selected bool) string {
	marker := " "
	name := DeviceNameStyle.Render(fmt.Sprintf("%-20s", s.Name))
	if selected {
		marker = DeviceSelectedStyle.Render(SelectedMarker)
		name = DeviceSelectedStyle.Render(fmt.Sprintf("%-20s", s.Name))
	}

	row := fmt.Sprintf("%s %s %s %s", marker, name, RenderState(s.On), MutedStyle.Render(fmt.Sprintf("%-10s", s.Kind)))
	if attrs := FormatAttributes(s.Attributes); attrs != "" {
		row += " " + MutedStyle.Render(attrs)
	}
	if s.UpdatedAt.IsZero() {
		row += " " + MutedStyle.Render("(waiting for status)")
	}
	return row
}

// RenderDeviceTable renders every device, one per line
func RenderDeviceTable(snaps []entity.Snapshot) string {
	if len(snaps) == 0 {
		return MutedStyle.Render("  No devices configured. Add one with 'tuyalocal devices add'.")
	}
	lines := make([]string, len(snaps))
	for i, s := range snaps {
		lines[i] = RenderDeviceRow(s, false)
	}
	return strings.Join(lines, "\n")
}
