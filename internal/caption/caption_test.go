package caption

import (
	"strings"
	"testing"
	"time"

	"camsync/internal/model"
)

func plain() *Formatter {
	return &Formatter{Glyphs: false, Location: time.UTC, TimeLayout: Format24H}
}

func TestFormatDoorbellPressed(t *testing.T) {
	got := plain().Format([]model.EventKind{model.KindChime})
	if got != "Doorbell Pressed" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatPriorityOrder(t *testing.T) {
	got := plain().Format([]model.EventKind{model.KindPerson, model.KindPackage})
	if got != "Package, Person Detected" {
		t.Fatalf("package must sort before person, got %q", got)
	}
}

func TestFormatStripsClipReady(t *testing.T) {
	got := plain().Format([]model.EventKind{model.KindClipReady, model.KindMotion})
	if got != "Motion Detected" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatEmptyAfterStripping(t *testing.T) {
	if got := plain().Format([]model.EventKind{model.KindClipReady}); got != "Event" {
		t.Fatalf("got %q", got)
	}
	if got := plain().Format(nil); got != "Event" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatChimeWithOthersUsesSuffix(t *testing.T) {
	got := plain().Format([]model.EventKind{model.KindPerson, model.KindChime})
	if got != "Doorbell, Person Detected" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatUnknownTagTitleized(t *testing.T) {
	got := plain().Format([]model.EventKind{model.KindMotion, model.EventKind("garage_door")})
	if got != "Motion, Garage Door Detected" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatDeduplicatesTags(t *testing.T) {
	got := plain().Format([]model.EventKind{model.KindPerson, model.KindPerson})
	if got != "Person Detected" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatGlyphs(t *testing.T) {
	f := &Formatter{Glyphs: true, Location: time.UTC, TimeLayout: Format24H}
	got := f.Format([]model.EventKind{model.KindPackage})
	if !strings.HasSuffix(got, "Package Detected") || got == "Package Detected" {
		t.Fatalf("expected glyph prefix, got %q", got)
	}
}

func TestCaptionComposition(t *testing.T) {
	f := plain()
	ts := time.Date(2026, 8, 22, 23, 40, 50, 0, time.UTC)
	got := f.Caption("Front Door", []model.EventKind{model.KindChime}, ts)
	want := "Front Door: Doorbell Pressed [23:40:50 22/08/2026]"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestNewFormatterPresets(t *testing.T) {
	f := NewFormatter(false, "UTC", "12h")
	if f.TimeLayout != Format12H {
		t.Fatalf("got layout %q", f.TimeLayout)
	}
	custom := NewFormatter(false, "UTC", "2006-01-02")
	if custom.TimeLayout != "2006-01-02" {
		t.Fatalf("custom layout not preserved: %q", custom.TimeLayout)
	}
}
