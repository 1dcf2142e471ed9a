package oremap

// Namespace URIs for the vocabularies a resource map draws on. These are
// fixed for the life of the process and never mutated.
const (
	RDFNS     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNS    = "http://www.w3.org/2000/01/rdf-schema#"
	XSDNS     = "http://www.w3.org/2001/XMLSchema#"
	DCNS      = "http://purl.org/dc/elements/1.1/"
	DCTermsNS = "http://purl.org/dc/terms/"
	FOAFNS    = "http://xmlns.com/foaf/0.1/"
	ORENS     = "http://www.openarchives.org/ore/terms/"
	CitoNS    = "http://purl.org/spar/cito/"
	ProvNS    = "http://www.w3.org/ns/prov#"
	ProvONENS = "http://purl.dataone.org/provone/2015/01/15/ontology#"
)

// Terms the aggregation builder asserts, plus the relation predicates
// packages commonly record.
const (
	RDFType           = RDFNS + "type"
	XSDString         = XSDNS + "string"
	DCTermsIdentifier = DCTermsNS + "identifier"
	DCTermsTitle      = DCTermsNS + "title"
	OREResourceMap    = ORENS + "ResourceMap"
	OREAggregation    = ORENS + "Aggregation"
	OREAggregates     = ORENS + "aggregates"
	OREIsAggregatedBy = ORENS + "isAggregatedBy"
	OREDescribes      = ORENS + "describes"

	CitoIsDocumentedBy = CitoNS + "isDocumentedBy"
	CitoDocuments      = CitoNS + "documents"
	ProvWasDerivedFrom = ProvNS + "wasDerivedFrom"
)

// AggregationTitle is the dcterms:title asserted on every aggregation.
const AggregationTitle = "DataONE Aggregation"
