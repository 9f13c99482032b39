package ai

import "testing"

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  \n```json\n[1,2]\n```\n ", `[1,2]`},
		{"plain text", "plain text"},
	}
	for _, c := range cases {
		if got := StripCodeFences(c.in); got != c.want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Front string `json:"front"`
		Back  string `json:"back"`
	}
	raw := "```json\n{\"front\":\"Q\",\"back\":\"A\"}\n```"
	if err := DecodeJSON(raw, &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if out.Front != "Q" || out.Back != "A" {
		t.Fatalf("unexpected decode: %+v", out)
	}
}

func TestDecodeJSONRejectsNonJSON(t *testing.T) {
	var out map[string]any
	if err := DecodeJSON("I cannot answer that.", &out); err == nil {
		t.Fatal("expected error for non-JSON response")
	}
	if err := DecodeJSON("```json\n```", &out); err == nil {
		t.Fatal("expected error for empty fenced block")
	}
}
