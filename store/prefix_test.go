package store

import (
	"sort"
	"testing"
)

func TestPrefixNamespace(t *testing.T) {
	m := NewMemory()
	ps := NewWithPrefix(m, "z")

	add(t, ps, "abc", "text 1")
	add(t, ps, "zed", "text 2")
	// directly into the underlying store, outside the namespace
	add(t, m, "qwerty", "text 3")

	var table = []struct {
		prefix string
		want   []string
	}{
		{"", []string{"abc", "zed"}},
		{"a", []string{"abc"}},
		{"b", nil},
		{"z", []string{"zed"}},
	}
	for _, row := range table {
		keys, err := ps.ListPrefix(row.prefix)
		if err != nil {
			t.Fatal(row.prefix, err)
		}
		sort.Strings(keys)
		if !equal(keys, row.want) {
			t.Errorf("ListPrefix(%q) = %v, want %v", row.prefix, keys, row.want)
		}
	}

	// List sees the same two keys
	var listed []string
	for key := range ps.List() {
		listed = append(listed, key)
	}
	sort.Strings(listed)
	if !equal(listed, []string{"abc", "zed"}) {
		t.Errorf("List gave %v, want [abc zed]", listed)
	}

	// while the underlying store holds everything, prefixes intact
	all, err := m.ListPrefix("")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(all)
	if !equal(all, []string{"qwerty", "zabc", "zzed"}) {
		t.Errorf("underlying store has %v", all)
	}
}

// add stores data under the key, failing the test on any error.
func add(t *testing.T, s Store, key string, data string) {
	t.Helper()
	w, err := s.Create(key)
	if err == nil {
		_, err = w.Write([]byte(data))
	}
	if err == nil {
		err = w.Close()
	}
	if err != nil {
		t.Fatalf("storing %s: %s", key, err)
	}
}
