package cache

import "testing"

func TestKeyShape(t *testing.T) {
	cases := []struct {
		orgID, route, query string
		want                string
	}{
		{"org-1", "loads-list", "page=1&page_size=20", "org-1:loads-list:page=1&page_size=20"},
		{"", "carriers-list", "", "_:carriers-list:"},
	}
	for _, tc := range cases {
		if got := Key(tc.orgID, tc.route, tc.query); got != tc.want {
			t.Fatalf("Key(%q, %q, %q) = %q, want %q", tc.orgID, tc.route, tc.query, got, tc.want)
		}
	}
}

func TestHashOfIsStable(t *testing.T) {
	a := HashOf([]byte(`{"count": 2}`))
	b := HashOf([]byte(`{"count": 2}`))
	c := HashOf([]byte(`{"count": 3}`))
	if a != b {
		t.Fatalf("identical payloads hashed differently: %s vs %s", a, b)
	}
	if a == c {
		t.Fatal("different payloads collided")
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestEntryContains(t *testing.T) {
	entry := Entry{IDList: []string{"a", "b"}}
	if !entry.Contains("a") || entry.Contains("z") {
		t.Fatalf("Contains misbehaved: %+v", entry)
	}
}
