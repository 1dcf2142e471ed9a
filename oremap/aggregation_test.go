package oremap

import (
	"reflect"
	"testing"
)

func TestBuildAggregationOrder(t *testing.T) {
	base := DefaultResolveBase
	mapURI := base + "map1"
	aggID := mapURI + "#aggregation"
	got := BuildAggregation("map1", base, []string{"a", "b"})
	expected := []Statement{
		{Subject: base + "a", Predicate: DCTermsIdentifier, Object: "a", ObjectKind: Literal, Datatype: XSDString},
		{Subject: base + "a", Predicate: OREIsAggregatedBy, Object: aggID, ObjectKind: Resource},
		{Subject: aggID, Predicate: OREAggregates, Object: base + "a", ObjectKind: Resource},
		{Subject: base + "b", Predicate: DCTermsIdentifier, Object: "b", ObjectKind: Literal, Datatype: XSDString},
		{Subject: base + "b", Predicate: OREIsAggregatedBy, Object: aggID, ObjectKind: Resource},
		{Subject: aggID, Predicate: OREAggregates, Object: base + "b", ObjectKind: Resource},
		{Subject: mapURI, Predicate: RDFType, Object: OREResourceMap, ObjectKind: Resource},
		{Subject: mapURI, Predicate: DCTermsIdentifier, Object: "map1", ObjectKind: Literal, Datatype: XSDString},
		{Subject: aggID, Predicate: RDFType, Object: OREAggregation, ObjectKind: Resource},
		{Subject: aggID, Predicate: DCTermsTitle, Object: AggregationTitle, ObjectKind: Literal},
		{Subject: mapURI, Predicate: OREDescribes, Object: aggID, ObjectKind: Resource},
	}
	if len(got) != len(expected) {
		t.Fatalf("Received %d statements, expected %d", len(got), len(expected))
	}
	for i := range expected {
		if !reflect.DeepEqual(got[i], expected[i]) {
			t.Errorf("statement %d: received %+v, expected %+v", i, got[i], expected[i])
		}
	}
}

func TestBuildAggregationEmptyMembers(t *testing.T) {
	got := BuildAggregation("map1", DefaultResolveBase, nil)
	// a degenerate aggregation still describes itself
	if len(got) != 5 {
		t.Fatalf("Received %d statements, expected 5", len(got))
	}
	if got[0].Object != OREResourceMap {
		t.Errorf("Received %q, expected %q", got[0].Object, OREResourceMap)
	}
}

func TestBuildAggregationPreResolvedMember(t *testing.T) {
	base := DefaultResolveBase
	resolved := base + "a"
	got := BuildAggregation("map1", base, []string{resolved})
	if got[0].Subject != resolved {
		t.Errorf("Received %q, expected %q (no double prefixing)", got[0].Subject, resolved)
	}
	// the identifier literal keeps the supplied form
	if got[0].Object != resolved {
		t.Errorf("Received %q, expected %q", got[0].Object, resolved)
	}
}
