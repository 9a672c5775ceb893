package parcel

import "testing"

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"test.txt", "text/plain"},
		{"test.txt.zip", "application/zip"},
		{"REPORT.CSV", "text/csv"},
		{"data.json", "application/json"},
		{"dir/page.html", "text/html"},
		{"photo.jpeg", "image/jpeg"},
		{"noextension", ""},
		{"archive.unknownext", ""},
		{"trailingdot.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContentTypeFor(tt.name); got != tt.want {
				t.Errorf("ContentTypeFor(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
