package indexer

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"hyphen break", "instal-\nment plan", "installment plan"},
		{"chained hyphen breaks", "a-\nb-\nc", "abc"},
		{"colon continuation", "Interest rate:\n   4% yearly", "Interest rate: 4% yearly"},
		{"currency before digit", "Max amount EGP\n500,000", "Max amount  EGP 500,000"},
		{"currency spacing", "fee EGP50 or LE20", "fee EGP 50 or LE 20"},
		{"bullet continuation", "• Loan amount up to\nEGP 10,000\n• Term 7 years", "• Loan amount up to EGP 10,000\n• Term 7 years"},
		{"dash bullet continuation", "- first\n  second part\n\nNext", "- first second part\n\nNext"},
		{"blank runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"crlf", "a\r\n\r\n\r\nb", "a\n\nb"},
		{"arabic pound", "100 جنيه\n200", "100 جنيه 200"},
		{"plain", "Nothing to change here.", "Nothing to change here."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"a-\nb-\nc-\nd",
		"Fees:\n  EGP\n  100\n- bullet\ncontinued\n  more\n\n\n\nend",
		"• one\n• two\nthree\n\n\n\n· four\nfive",
		"المبلغ جنيه\n5000 و LE\n7\nSalary:\n\n\n   10,000 جنيه",
		"Rate:\n\t5%\nEGP-\nLE-\n3",
		"x\n\n\ny-\n\nz",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("not idempotent for %q:\n once: %q\ntwice: %q", in, once, twice)
		}
	}
}

func TestStripNUL(t *testing.T) {
	if got := StripNUL("a\x00b\x00"); got != "ab" {
		t.Errorf("StripNUL() = %q", got)
	}
}
