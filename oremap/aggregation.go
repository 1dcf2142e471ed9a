package oremap

// BuildAggregation derives the structural triples describing a resource
// map and its aggregation. The order is fixed: for each member, in member
// order, the identifier literal, the ore:isAggregatedBy link, and the
// reciprocal ore:aggregates link; then the five statements describing the
// map itself and its aggregation. Members already carrying the base prefix
// are not prefixed a second time. An empty member list is a valid
// degenerate case and yields only the map-level statements.
func BuildAggregation(mapID, base string, memberIDs []string) []Statement {
	mapURI := Resolve(mapID, base)
	aggID := mapURI + "#aggregation"
	stmts := make([]Statement, 0, 3*len(memberIDs)+5)
	for _, id := range memberIDs {
		m := Resolve(id, base)
		stmts = append(stmts,
			Statement{Subject: m, Predicate: DCTermsIdentifier, Object: id, ObjectKind: Literal, Datatype: XSDString},
			Statement{Subject: m, Predicate: OREIsAggregatedBy, Object: aggID, ObjectKind: Resource},
			Statement{Subject: aggID, Predicate: OREAggregates, Object: m, ObjectKind: Resource},
		)
	}
	return append(stmts,
		Statement{Subject: mapURI, Predicate: RDFType, Object: OREResourceMap, ObjectKind: Resource},
		Statement{Subject: mapURI, Predicate: DCTermsIdentifier, Object: mapID, ObjectKind: Literal, Datatype: XSDString},
		Statement{Subject: aggID, Predicate: RDFType, Object: OREAggregation, ObjectKind: Resource},
		Statement{Subject: aggID, Predicate: DCTermsTitle, Object: AggregationTitle, ObjectKind: Literal},
		Statement{Subject: mapURI, Predicate: OREDescribes, Object: aggID, ObjectKind: Resource},
	)
}
