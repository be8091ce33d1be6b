package hue

import (
	"testing"

	"github.com/dokzlo13/lightcmd/internal/command"
)

func TestHexToXY(t *testing.T) {
	for name, code := range command.DefaultPalette {
		xy, err := hexToXY(code)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(xy) != 2 {
			t.Fatalf("%s: len(xy) = %d", name, len(xy))
		}
		for _, v := range xy {
			if v <= 0 || v >= 1 {
				t.Errorf("%s: xy component %v out of range", name, v)
			}
		}
	}

	if _, err := hexToXY("zzzzzz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestHexToMirek(t *testing.T) {
	warm, err := hexToMirek("efd275")
	if err != nil {
		t.Fatal(err)
	}
	normal, err := hexToMirek("f1e0b5")
	if err != nil {
		t.Fatal(err)
	}
	cool, err := hexToMirek("f5faf6")
	if err != nil {
		t.Fatal(err)
	}

	if !(warm > normal && normal > cool) {
		t.Errorf("expected warm > normal > cool, got %d, %d, %d", warm, normal, cool)
	}
	for _, m := range []uint16{warm, normal, cool} {
		if m < minMirek || m > maxMirek {
			t.Errorf("mirek %d outside [%d, %d]", m, minMirek, maxMirek)
		}
	}

	// Deep blue is far outside the white range and must clamp.
	blue, err := hexToMirek("0000ff")
	if err != nil {
		t.Fatal(err)
	}
	if blue < minMirek || blue > maxMirek {
		t.Errorf("mirek %d not clamped", blue)
	}
}
