package thermal

import (
	"reflect"
	"strings"
	"testing"

	"github.com/banshee-data/thermalsim/internal/fsutil"
)

func TestLoadResponse(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	files := map[string]string{
		"resp.json": `[0.5, 0.75, 1.0]`,
		"resp.txt":  "# camera response\n0.5\n\n0.75 # mid band\n1.0\n",
		"bad.txt":   "0.5\nabc\n",
	}
	for name, body := range files {
		if err := fsys.WriteFile(name, []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}

	tests := []struct {
		name    string
		path    string
		want    []float64
		wantErr string
	}{
		{"json array", "resp.json", []float64{0.5, 0.75, 1.0}, ""},
		{"text with comments", "resp.txt", []float64{0.5, 0.75, 1.0}, ""},
		{"bad line", "bad.txt", nil, "line 2"},
		{"missing file", "missing.txt", nil, "missing.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadResponse(fsys, tt.path)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("LoadResponse(%s) error = %v, want mention of %q", tt.path, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadResponse(%s) error: %v", tt.path, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("LoadResponse(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
