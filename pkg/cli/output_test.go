package cli

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	err := Output(sample{Name: "ep-1", Count: 3}, OutputOptions{
		Format: FormatJSON,
		Writer: &buf,
	})
	if err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	if !strings.Contains(got, `"name": "ep-1"`) || !strings.Contains(got, `"count": 3`) {
		t.Errorf("json output = %q", got)
	}
}

func TestOutputYAMLDefault(t *testing.T) {
	var buf bytes.Buffer
	err := Output(sample{Name: "ep-1", Count: 3}, OutputOptions{Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	if !strings.Contains(got, "name: ep-1") || !strings.Contains(got, "count: 3") {
		t.Errorf("yaml output = %q", got)
	}
}

func TestOutputRaw(t *testing.T) {
	var buf bytes.Buffer
	if err := Output("plain text", OutputOptions{Format: FormatRaw, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "plain text" {
		t.Errorf("raw output = %q", buf.String())
	}
}

func TestOutputUnknownFormat(t *testing.T) {
	if err := Output(sample{}, OutputOptions{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
