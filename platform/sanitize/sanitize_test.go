package sanitize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Union Station", "Union Station"},
		{"tags", "<b>Coffee</b> Shop", "Coffee Shop"},
		{"encoded tags", "&lt;script&gt;alert(1)&lt;/script&gt;Park", "alert(1)Park"},
		{"whitespace", "  Civic \t\n Center  ", "Civic Center"},
		{"control", "Red\x00 Rocks", "Red Rocks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.in); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNameTruncatesRunes(t *testing.T) {
	if got := Name("Café Brück", 4); got != "Café" {
		t.Errorf("got %q", got)
	}
	if got := Name("Café", 0); got != "Café" {
		t.Errorf("got %q", got)
	}
}
