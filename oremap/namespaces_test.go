package oremap

import (
	"errors"
	"testing"
)

func TestMergeNamespacesAdds(t *testing.T) {
	merged, err := MergeNamespaces(Namespaces{
		"https://example.org/vocab#": "exv",
	})
	if err != nil {
		t.Fatal(err)
	}
	if merged["https://example.org/vocab#"] != "exv" {
		t.Errorf("Received %q, expected %q", merged["https://example.org/vocab#"], "exv")
	}
	// defaults survive the merge
	if merged[ORENS] != "ore" {
		t.Errorf("Received %q, expected %q", merged[ORENS], "ore")
	}
	if len(merged) != len(DefaultNamespaces())+1 {
		t.Errorf("Received %d entries, expected %d", len(merged), len(DefaultNamespaces())+1)
	}
}

func TestMergeNamespacesConflict(t *testing.T) {
	var table = []struct {
		name      string
		overrides Namespaces
		conflict  bool
	}{
		{"default prefix, different URI",
			Namespaces{"https://example.org/other/": "dc"}, true},
		{"identical to a default",
			Namespaces{DCTermsNS: "dcterms"}, false},
		{"re-prefix a default URI",
			Namespaces{ORENS: "oai-ore"}, false},
		{"two overrides share a prefix",
			Namespaces{"https://example.org/a#": "ex", "https://example.org/b#": "ex"}, true},
	}
	for _, test := range table {
		_, err := MergeNamespaces(test.overrides)
		got := errors.Is(err, ErrNamespaceConflict)
		if got != test.conflict {
			t.Errorf("%s: conflict = %v, expected %v (err=%v)", test.name, got, test.conflict, err)
		}
	}
}

func TestDefaultNamespacesIsCopy(t *testing.T) {
	first := DefaultNamespaces()
	first[RDFNS] = "tampered"
	second := DefaultNamespaces()
	if second[RDFNS] != "rdf" {
		t.Errorf("Received %q, expected %q", second[RDFNS], "rdf")
	}
}
