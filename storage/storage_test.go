package storage

import "testing"

func TestValidName(t *testing.T) {
	valid := []string{"a.txt", "report.pdf", "-x", "a..b.txt", ".hidden"}
	for _, name := range valid {
		if !ValidName(name) {
			t.Errorf("ValidName(%q) = false, want true", name)
		}
	}
	invalid := []string{"", ".", "..", "a/b", `a\b`, "../etc/passwd", "nul\x00.txt", "/abs.txt"}
	for _, name := range invalid {
		if ValidName(name) {
			t.Errorf("ValidName(%q) = true, want false", name)
		}
	}
}
