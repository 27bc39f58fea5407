package theme

import (
	"strings"
	"testing"
)

func TestPlasma(t *testing.T) {
	p := Plasma()
	if p.Name != "plasma" || len(p.Colors) != 11 {
		t.Fatalf("got %q with %d colors", p.Name, len(p.Colors))
	}
	if got := p.Lookup(0); got != (RGB{13, 8, 135}) {
		t.Fatalf("Lookup(0) = %v", got)
	}
	if got := p.Lookup(2); got != (RGB{240, 249, 33}) {
		t.Fatalf("Lookup(2) = %v", got)
	}
}

func TestLookupInterpolates(t *testing.T) {
	p := &Palette{Colors: []RGB{{0, 0, 0}, {200, 100, 50}}}
	if got := p.Lookup(0.5); got != (RGB{100, 50, 25}) {
		t.Fatalf("Lookup(0.5) = %v", got)
	}
}

func TestParseGPL(t *testing.T) {
	src := "GIMP Palette\nName: two\nColumns: 2\n# comment\n255 0 0 red\n0 0 255\nbogus line\n"
	p, err := ParseGPL(strings.NewReader(src), "two.gpl")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "two" || len(p.Colors) != 2 || p.Colors[1] != (RGB{0, 0, 255}) {
		t.Fatalf("got %+v", p)
	}

	if _, err := ParseGPL(strings.NewReader("GIMP Palette\n"), "empty.gpl"); err == nil {
		t.Fatal("empty palette accepted")
	}
}

func TestLoadGPLOrFallsBack(t *testing.T) {
	if p := LoadGPLOr("/nonexistent/palette.gpl"); p.Name != "plasma" {
		t.Fatalf("got %q", p.Name)
	}
}
