package storage

import "testing"

func TestObjectKey(t *testing.T) {
	tests := []struct {
		folder, file, want string
	}{
		{"debuglogs", "2023-09-8@14-05-09.json", "debuglogs/2023-09-8@14-05-09.json"},
		{"/debuglogs/", "/var/lib/app/2023-09-8@14-05-09.json", "debuglogs/2023-09-8@14-05-09.json"},
		{"", "entry.json", "entry.json"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.folder, tt.file); got != tt.want {
			t.Errorf("ObjectKey(%q, %q) = %q, want %q", tt.folder, tt.file, got, tt.want)
		}
	}
}

func TestValidateContentType(t *testing.T) {
	s := &MinIOService{}
	if err := s.ValidateContentType("application/json; charset=utf-8"); err != nil {
		t.Fatalf("expected json to be allowed: %v", err)
	}
	if err := s.ValidateContentType("image/png"); err == nil {
		t.Fatal("expected image/png to be rejected")
	}
}

func TestValidateFileSize(t *testing.T) {
	s := &MinIOService{maxFileSize: 100}
	if err := s.ValidateFileSize(0); err == nil {
		t.Fatal("expected empty file to be rejected")
	}
	if err := s.ValidateFileSize(101); err == nil {
		t.Fatal("expected oversized file to be rejected")
	}
	if err := s.ValidateFileSize(100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (&MinIOService{}).ValidateFileSize(1 << 30); err != nil {
		t.Fatalf("unlimited store rejected file: %v", err)
	}
}
