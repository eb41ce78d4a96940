package render

import (
	"strings"
	"testing"
)

func TestHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
		excludes []string
	}{
		{
			name:     "plain text",
			input:    "hola",
			contains: []string{"<p>hola</p>"},
		},
		{
			name:     "emphasis",
			input:    "**bold** and _it_",
			contains: []string{"<strong>bold</strong>", "<em>it</em>"},
		},
		{
			name:     "script is removed",
			input:    "hi <script>alert(1)</script>",
			contains: []string{"hi"},
			excludes: []string{"<script", "alert(1)"},
		},
		{
			name:     "javascript link is removed",
			input:    "[click](javascript:void)",
			excludes: []string{"javascript:"},
		},
		{
			name:     "external link gets nofollow",
			input:    "[site](https://example.com)",
			contains: []string{`href="https://example.com"`, "nofollow", "noopener", `target="_blank"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := HTML(tt.input)
			for _, c := range tt.contains {
				if !strings.Contains(out, c) {
					t.Errorf("HTML(%q) = %q; want it to contain %q", tt.input, out, c)
				}
			}
			for _, e := range tt.excludes {
				if strings.Contains(out, e) {
					t.Errorf("HTML(%q) = %q; want it not to contain %q", tt.input, out, e)
				}
			}
		})
	}
}
