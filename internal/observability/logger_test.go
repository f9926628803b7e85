package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"none", zerolog.Disabled},
		{"off", zerolog.Disabled},
	}
	for _, c := range cases {
		got, err := ParseLevel(c.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) returned error %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) should fail")
	}
}

func TestLayerLogger_AppliesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := zerolog.New(&buf)

	l := LayerLogger(root, "MAC", "error")
	if l.GetLevel() != zerolog.ErrorLevel {
		t.Errorf("level = %v, want error", l.GetLevel())
	}

	l.Info().Msg("quiet")
	l.Error().Msg("loud")
	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info line not suppressed: %q", out)
	}
	if !strings.Contains(out, "loud") || !strings.Contains(out, `"layer":"MAC"`) {
		t.Errorf("error line missing or unlabeled: %q", out)
	}
}

func TestLayerLogger_FallsBackOnUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	root := zerolog.New(&buf)

	l := LayerLogger(root, "RLC", "loud")
	if l.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info fallback", l.GetLevel())
	}
	if !strings.Contains(buf.String(), "unknown log level") {
		t.Errorf("missing fallback warning: %q", buf.String())
	}
}
