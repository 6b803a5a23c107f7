package encoder

import (
	"strings"
	"testing"
)

func TestEncodeDeterministic(t *testing.T) {
	source := "@startuml\nAlice -> Bob: hello\n@enduml"
	first := Encode(source)
	second := Encode(source)
	if first != second {
		t.Errorf("Encode(%q) not deterministic: %q != %q", source, first, second)
	}
	if first == "" {
		t.Error("Encode returned empty key for non-empty source")
	}
}

func TestEncodeAlphabetOnly(t *testing.T) {
	sources := []string{
		"",
		"@startuml\nA -> B\n@enduml",
		"@startuml\nparticipant \"Ünïcode Ñame\" as U\n@enduml",
		strings.Repeat("class Node {\n  +int id\n}\n", 200),
		"line one\r\nline two\r\n",
	}
	for _, source := range sources {
		key := Encode(source)
		for _, r := range key {
			if !strings.ContainsRune(alphabet, r) {
				t.Errorf("Encode(%.20q...) produced character %q outside alphabet", source, r)
			}
		}
		if strings.ContainsAny(key, "+/=") {
			t.Errorf("Encode(%.20q...) produced non URL-safe key %q", source, key)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"empty", ""},
		{"minimal", "@startuml\n@enduml"},
		{"sequence", "@startuml\nAlice -> Bob: Authentication Request\nBob --> Alice: Authentication Response\n@enduml"},
		{"unicode", "@startuml\nactor \"日本語\" as jp\njp -> jp: ping\n@enduml"},
		{"crlf", "@startuml\r\nA -> B\r\n@enduml\r\n"},
		{"large", strings.Repeat("node n1 -> n2 : edge label with some text\n", 500)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := Encode(tt.source)
			decoded, err := Decode(key)
			if err != nil {
				t.Fatalf("Decode(Encode(source)) error: %v", err)
			}
			if decoded != tt.source {
				t.Errorf("round trip mismatch: got %q, want %q", decoded, tt.source)
			}
		})
	}
}

func TestEncodeDistinctSources(t *testing.T) {
	a := Encode("@startuml\nA -> B\n@enduml")
	b := Encode("@startuml\nA -> C\n@enduml")
	if a == b {
		t.Errorf("distinct sources mapped to the same key %q", a)
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty key", ""},
		{"illegal characters", "abc+/="},
		{"truncated text", "A"},
		{"corrupt payload", keyEncoding.EncodeToString([]byte{0xff, 0xff, 0xff, 0xff})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.key); err == nil {
				t.Errorf("Decode(%q) expected error, got nil", tt.key)
			}
		})
	}
}
