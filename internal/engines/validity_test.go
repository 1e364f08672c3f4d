package engines

import "testing"

func TestValidityScore(t *testing.T) {
	tests := []struct {
		name string
		text string
		low  float64 // inclusive lower bound
		high float64 // inclusive upper bound
	}{
		{"empty", "", 0, 0},
		{"whitespace only", "   \n\t  ", 0, 0},
		{"near-empty", "ab", 0, 0.2},
		{"clean sentence", "Invoice from Acme Corp dated March 15, 2024 for $120.00", 0.9, 1.0},
		{"mostly symbols", "~~~ ### ||| @@@ %%% ^^^ &&& *** ((( )))", 0, 0.2},
		{"replacement chars", "Inv�ice fr�m �cme C�rp f�r $12�.00", 0, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidityScore(tt.text)
			if got < tt.low || got > tt.high {
				t.Errorf("ValidityScore(%q) = %v, want in [%v, %v]", tt.text, got, tt.low, tt.high)
			}
		})
	}
}

func TestBelowValidityFloor(t *testing.T) {
	good := "Invoice from Acme Corp dated March 15, 2024 for $120.00"

	if BelowValidityFloor(good, 0.9, 0.3) {
		t.Error("clean text above floor reported as below")
	}
	if !BelowValidityFloor(good, 0.1, 0.3) {
		t.Error("low provider confidence must fail the floor regardless of text")
	}
	if !BelowValidityFloor("", 0.9, 0.3) {
		t.Error("empty text must fail the floor regardless of confidence")
	}
}
