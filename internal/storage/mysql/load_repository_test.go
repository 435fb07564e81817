package mysql

import "testing"

func TestLikeContainsEscapesWildcards(t *testing.T) {
	cases := []struct{ in, want string }{
		{"REF-9", "%REF-9%"},
		{"100%", `%100\%%`},
		{"a_b", `%a\_b%`},
		{`c\d`, `%c\\d%`},
	}
	for _, tc := range cases {
		if got := likeContains(tc.in); got != tc.want {
			t.Fatalf("likeContains(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
