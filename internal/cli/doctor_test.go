package cli

import (
	"testing"

	"github.com/plantpipe/plantpipe/pkg/plantuml"
)

func TestJarPath(t *testing.T) {
	jarCmd := plantuml.Command{
		Path: "java",
		Args: []string{"-Djava.awt.headless=true", "-jar", "/opt/plantuml.jar", "-charset", "utf-8"},
	}
	if got := jarPath(jarCmd); got != "/opt/plantuml.jar" {
		t.Errorf("jarPath() = %q, want the archive path", got)
	}

	binCmd := plantuml.Command{
		Path: "/usr/bin/plantuml",
		Args: []string{"-Djava.awt.headless=true", "-charset", "utf-8"},
	}
	if got := jarPath(binCmd); got != "" {
		t.Errorf("jarPath() = %q, want empty for a plain binary", got)
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"openjdk version \"17.0.2\"\nOpenJDK Runtime\n", "openjdk version \"17.0.2\""},
		{"\n\n  padded  \nrest", "padded"},
		{"", ""},
		{"single", "single"},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in); got != tt.want {
			t.Errorf("firstLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOrDefault(t *testing.T) {
	if got := orDefault("", "fallback"); got != "fallback" {
		t.Errorf("orDefault() = %q, want the fallback", got)
	}
	if got := orDefault("set", "fallback"); got != "set" {
		t.Errorf("orDefault() = %q, want the set value", got)
	}
}
