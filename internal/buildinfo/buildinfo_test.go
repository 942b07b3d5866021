package buildinfo

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, "datagrid")
	out := buf.String()
	if !strings.HasPrefix(out, "datagrid ") {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.Contains(out, "Go version: go") {
		t.Errorf("missing Go version in %q", out)
	}
}
