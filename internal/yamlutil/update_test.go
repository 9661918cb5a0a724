package yamlutil

import (
	"strings"
	"testing"
)

func TestSetScalar(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
		value   interface{}
		want    string
		wantErr bool
	}{
		{
			name:    "replace integer value",
			content: "name: app\nport: 3000\nscript: dev\n",
			key:     "port",
			value:   3001,
			want:    "name: app\nport: 3001\nscript: dev\n",
		},
		{
			name:    "preserve trailing comment",
			content: "name: app\nport: 3000 # desired dev-server port\n",
			key:     "port",
			value:   3001,
			want:    "name: app\nport: 3001 # desired dev-server port\n",
		},
		{
			name:    "preserve surrounding comments and blank lines",
			content: "# project config\nname: app\n\n# the port\nport: 3000\n",
			key:     "port",
			value:   5174,
			want:    "# project config\nname: app\n\n# the port\nport: 5174\n",
		},
		{
			name:    "missing key",
			content: "name: app\n",
			key:     "port",
			value:   3001,
			wantErr: true,
		},
		{
			name:    "nested key rejected",
			content: "server:\n  port: 3000\n",
			key:     "server",
			value:   "x",
			wantErr: true,
		},
		{
			name:    "malformed document",
			content: "name: [unclosed\n",
			key:     "name",
			value:   "x",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SetScalar(tt.content, tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetScalar() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("SetScalar() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetScalarIgnoresIndentedKeys(t *testing.T) {
	content := "port: 3000\nnested:\n  port: 9999\n"

	got, err := SetScalar(content, "port", 3001)
	if err != nil {
		t.Fatalf("SetScalar() error = %v", err)
	}
	if !strings.Contains(got, "port: 3001\n") {
		t.Errorf("SetScalar() did not update the top-level key: %q", got)
	}
	if !strings.Contains(got, "  port: 9999") {
		t.Errorf("SetScalar() touched the nested key: %q", got)
	}
}

func TestSetScalarOrAppend(t *testing.T) {
	// Existing key behaves like SetScalar.
	got, err := SetScalarOrAppend("port: 3000\n", "port", 3001)
	if err != nil {
		t.Fatalf("SetScalarOrAppend() error = %v", err)
	}
	if got != "port: 3001\n" {
		t.Errorf("SetScalarOrAppend() = %q, want %q", got, "port: 3001\n")
	}

	// Missing key gets appended.
	got, err = SetScalarOrAppend("name: app\n", "port", 3001)
	if err != nil {
		t.Fatalf("SetScalarOrAppend() error = %v", err)
	}
	if got != "name: app\nport: 3001\n" {
		t.Errorf("SetScalarOrAppend() = %q, want appended key", got)
	}

	// Document without a trailing newline still appends cleanly.
	got, err = SetScalarOrAppend("name: app", "port", 3001)
	if err != nil {
		t.Fatalf("SetScalarOrAppend() error = %v", err)
	}
	if got != "name: app\nport: 3001\n" {
		t.Errorf("SetScalarOrAppend() = %q, want newline inserted before append", got)
	}
}
