package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want Args
	}{
		{
			name: "no arguments",
			argv: nil,
			want: Args{},
		},
		{
			name: "all flags",
			argv: []string{"--dev-mode", "--dev-tools", "--custom-config-folder", "--page", "firstpage"},
			want: Args{DevMode: true, DevTools: true, CustomConfigFolder: true, Page: PageFirstPage},
		},
		{
			name: "unknown page is default",
			argv: []string{"--page", "settings"},
			want: Args{Page: ""},
		},
		{
			name: "switch config page",
			argv: []string{"--page=switchConfig"},
			want: Args{Page: PageSwitchConfig},
		},
		{
			name: "test subcommand",
			argv: []string{"--dev-mode", "test", "--debug"},
			want: Args{DevMode: true, Command: &Command{Name: CommandTest, Debug: true}},
		},
		{
			name: "version subcommand",
			argv: []string{"version", "--detailed"},
			want: Args{Command: &Command{Name: CommandVersion, Detailed: true}},
		},
		{
			name: "flags after subcommand",
			argv: []string{"version", "--page", "main"},
			want: Args{Page: PageMain, Command: &Command{Name: CommandVersion}},
		},
		{
			name: "unknown flags ignored",
			argv: []string{"--inspector-port", "--dev-mode"},
			want: Args{DevMode: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.argv, &bytes.Buffer{})
			if err != nil {
				t.Fatalf("Parse(%v) error: %v", tt.argv, err)
			}
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(tt.want)
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("Parse(%v) = %s, want %s", tt.argv, gotJSON, wantJSON)
			}
		})
	}
}

func TestParseHelp(t *testing.T) {
	var out bytes.Buffer
	_, err := Parse([]string{"--help"}, &out)
	if !errors.Is(err, ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
	if !strings.Contains(out.String(), "--custom-config-folder") {
		t.Errorf("help output missing flags: %s", out.String())
	}
}

func TestParseRejectsStrayArgs(t *testing.T) {
	if _, err := Parse([]string{"version", "extra"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for positional argument")
	}
}

func TestArgsJSONShape(t *testing.T) {
	data, err := json.Marshal(Args{Page: PageMain})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"devMode":false,"devTools":false,"customConfigFolder":false,"page":"main","command":null}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestWriteVersion(t *testing.T) {
	var short, long bytes.Buffer
	if err := WriteVersion(&short, false); err != nil {
		t.Fatal(err)
	}
	if err := WriteVersion(&long, true); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(short.String(), "xxmm ") {
		t.Errorf("unexpected version output %q", short.String())
	}
	if !strings.Contains(long.String(), "platform:") {
		t.Errorf("detailed output missing platform: %q", long.String())
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, &Args{DevMode: true}, map[string]string{"dataDir": "/tmp/x"}); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["args"]["devMode"] != true || decoded["report"]["dataDir"] != "/tmp/x" {
		t.Errorf("unexpected report %s", buf.String())
	}
}
