package parser

import "testing"

func TestSmallCapsRepair(t *testing.T) {
	s := NewSmallCapsRepairer(DefaultRegistry())
	tests := []struct {
		in, want string
	}{
		{"J USTICE T HOMAS delivered the opinion", "JUSTICE THOMAS delivered the opinion"},
		{"C HIEF J USTICE R OBERTS", "CHIEF JUSTICE ROBERTS"},
		{"USTICE HOMAS, dissenting.", "JUSTICE THOMAS, dissenting."},
		{"with whom HIEF USTICE OBERTS joins", "with whom CHIEF JUSTICE ROBERTS joins"},
		{"J USTICE K AGAN, with whom J USTICE S OTOMAYOR joins", "JUSTICE KAGAN, with whom JUSTICE SOTOMAYOR joins"},
		{"JUSTICE THOMAS, dissenting.", "JUSTICE THOMAS, dissenting."},
		{"all lowercase prose stays put", "all lowercase prose stays put"},
	}
	for _, tt := range tests {
		if got := s.Repair(tt.in); got != tt.want {
			t.Errorf("Repair(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestSmallCapsRepair_Idempotent(t *testing.T) {
	s := NewSmallCapsRepairer(DefaultRegistry())
	for _, in := range []string{
		"J USTICE T HOMAS, with whom J USTICE A LITO joins, dissenting.",
		"USTICE INSBURG filed a dissenting opinion.",
		"C HIEF J USTICE R OBERTS delivered the opinion of the Court.",
	} {
		once := s.Repair(in)
		if twice := s.Repair(once); twice != once {
			t.Errorf("expected idempotent repair of %q: %q then %q", in, once, twice)
		}
	}
}

func TestSmallCapsRepair_ShortRemainderIgnored(t *testing.T) {
	s := NewSmallCapsRepairer(NewRegistry("Doe"))
	// "OE" is too short to repair on its own, but the split form is.
	if got := s.Repair("OE, dissenting"); got != "OE, dissenting" {
		t.Errorf("expected short remainder untouched, got %q", got)
	}
	if got := s.Repair("D OE, dissenting"); got != "DOE, dissenting" {
		t.Errorf("expected split name collapsed, got %q", got)
	}
}
