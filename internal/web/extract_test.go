package web

import "testing"

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"scripts and styles removed",
			`<html><head><style>body{color:red}</style><script>alert(1)</script></head><body>Hello</body></html>`,
			"Hello",
		},
		{
			"nav footer aside removed",
			`<body><nav>menu</nav><p>Main content</p><footer>legal</footer><aside>ads</aside></body>`,
			"Main content",
		},
		{
			"entities decoded",
			`<p>Fish &amp; chips &lt;here&gt;</p>`,
			"Fish & chips <here>",
		},
		{
			"whitespace collapsed",
			"<p>a</p>\n\n\t<p>b   c</p>",
			"a b c",
		},
		{
			"empty input",
			"",
			"",
		},
		{
			"multiline script",
			"<script>\nvar x = 1;\nvar y = 2;\n</script>done",
			"done",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractText(tt.html); got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripTags(t *testing.T) {
	if got := stripTags("<b>bold</b> text"); got != "bold text" {
		t.Errorf("stripTags: got %q", got)
	}
	if got := stripTags("no markup"); got != "no markup" {
		t.Errorf("stripTags passthrough: got %q", got)
	}
}
