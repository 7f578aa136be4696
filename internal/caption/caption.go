// Package caption turns event type tags into the human-readable text sent
// alongside each clip.
package caption

import (
	"strings"
	"time"

	"camsync/internal/model"
)

// Preset time layouts selectable via config, mirroring 24h/12h wall-clock
// conventions.
const (
	Format24H = "15:04:05 02/01/2006"   // 23:40:50 22/10/2025
	Format12H = "03:04:05PM 01/02/2006" // 11:40:50PM 10/22/2025
)

// kindOrder fixes caption priority. Earlier kinds are considered more
// specific and are listed first.
var kindOrder = []model.EventKind{
	model.KindChime,
	model.KindPackage,
	model.KindPerson,
	model.KindAnimal,
	model.KindVehicle,
	model.KindMotion,
	model.KindSound,
}

var kindNames = map[model.EventKind]string{
	model.KindChime:   "Doorbell",
	model.KindPackage: "Package",
	model.KindPerson:  "Person",
	model.KindAnimal:  "Animal",
	model.KindVehicle: "Vehicle",
	model.KindMotion:  "Motion",
	model.KindSound:   "Sound",
}

var kindGlyphs = map[model.EventKind]string{
	model.KindChime:   "\U0001F514", // bell
	model.KindPackage: "\U0001F4E6", // package
	model.KindPerson:  "\U0001F9CD", // person standing
	model.KindAnimal:  "\U0001F43E", // paw prints
	model.KindVehicle: "\U0001F697", // automobile
	model.KindMotion:  "\U0001F3C3", // runner
	model.KindSound:   "\U0001F50A", // speaker
}

type Formatter struct {
	// Glyphs prepends a per-tag icon when the delivery target renders them.
	Glyphs bool
	// Location and TimeLayout control the timestamp appended by Caption.
	Location   *time.Location
	TimeLayout string
}

// NewFormatter resolves the config-level timezone and time-format settings.
// An unknown preset is treated as a literal Go layout string.
func NewFormatter(glyphs bool, timezone, timeFormat string) *Formatter {
	loc := time.UTC
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}
	layout := time.RFC1123
	switch strings.ToLower(strings.TrimSpace(timeFormat)) {
	case "":
	case "24h":
		layout = Format24H
	case "12h":
		layout = Format12H
	default:
		layout = timeFormat
	}
	return &Formatter{Glyphs: glyphs, Location: loc, TimeLayout: layout}
}

// Format renders a tag set as a description. The clip-ready sentinel is
// stripped first; an empty remainder yields the generic "Event". A lone
// chime gets its own phrase instead of the "Detected" suffix. Known tags are
// listed in priority order, unknown tags afterward in encounter order with a
// titleized fallback so an unrecognized feed value never fails.
func (f *Formatter) Format(kinds []model.EventKind) string {
	present := make(map[model.EventKind]bool, len(kinds))
	var unknown []model.EventKind
	for _, k := range kinds {
		if k == model.KindClipReady || present[k] {
			continue
		}
		present[k] = true
		if _, known := kindNames[k]; !known {
			unknown = append(unknown, k)
		}
	}
	if len(present) == 0 {
		return "Event"
	}
	if len(present) == 1 && present[model.KindChime] {
		if f.Glyphs {
			return kindGlyphs[model.KindChime] + " Doorbell Pressed"
		}
		return "Doorbell Pressed"
	}

	var parts []string
	for _, k := range kindOrder {
		if present[k] {
			parts = append(parts, f.display(k))
		}
	}
	for _, k := range unknown {
		parts = append(parts, f.display(k))
	}
	return strings.Join(parts, ", ") + " Detected"
}

// Caption composes the full delivery caption: description, device name and
// the event time rendered in the configured timezone and layout.
func (f *Formatter) Caption(deviceName string, kinds []model.EventKind, eventTime time.Time) string {
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	layout := f.TimeLayout
	if layout == "" {
		layout = time.RFC1123
	}
	text := f.Format(kinds)
	return deviceName + ": " + text + " [" + eventTime.In(loc).Format(layout) + "]"
}

func (f *Formatter) display(k model.EventKind) string {
	name, ok := kindNames[k]
	if !ok {
		name = titleize(string(k))
	}
	if f.Glyphs {
		if glyph, ok := kindGlyphs[k]; ok {
			return glyph + " " + name
		}
	}
	return name
}

func titleize(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
	if s == "" {
		return "Event"
	}
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
