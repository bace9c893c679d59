package rdf

// Namespaces used by provisioning ontologies.
const (
	NSRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSXSD  = "http://www.w3.org/2001/XMLSchema#"
	NSSH   = "http://www.w3.org/ns/shacl#"
	NSConn = "https://w3id.org/conn#"
	NSNifi = "https://w3id.org/conn/nifi#"
	NSRDFS = "http://www.w3.org/2000/01/rdf-schema#"
)

// Core vocabulary.
const (
	// RDFType links an instance to its ontology type.
	RDFType = NSRDF + "type"
	// XSDString is the default literal datatype.
	XSDString = NSXSD + "string"
	// XSDInteger is used for cardinality values in generated shapes.
	XSDInteger = NSXSD + "integer"
	// RDFSComment carries descriptions in generated ontologies.
	RDFSComment = NSRDFS + "comment"
)

// SHACL shape vocabulary.
const (
	SHProperty     = NSSH + "property"
	SHPath         = NSSH + "path"
	SHDatatype     = NSSH + "datatype"
	SHClass        = NSSH + "class"
	SHName         = NSSH + "name"
	SHDescription  = NSSH + "description"
	SHMinCount     = NSSH + "minCount"
	SHDefaultValue = NSSH + "defaultValue"
)

// Connector vocabulary.
const (
	// ConnShape attaches a shape to an ontology type.
	ConnShape = NSConn + "shape"
	// ConnProcessProperties attaches engine properties (nifi:type) to an ontology type.
	ConnProcessProperties = NSConn + "processProperties"
	// ConnWriterChannel marks a property path as the writing end of a link.
	ConnWriterChannel = NSConn + "WriterChannel"
	// ConnReaderChannel marks a property path as the reading end of a link.
	ConnReaderChannel = NSConn + "ReaderChannel"
	// ConnNifiChannel joins a writer node and a reader node into a direct link.
	ConnNifiChannel = NSConn + "NifiChannel"
	// ConnWriter is the writer end of a NifiChannel.
	ConnWriter = NSConn + "writer"
	// ConnReader is the reader end of a NifiChannel.
	ConnReader = NSConn + "reader"
)

// NiFi vocabulary.
const (
	// NifiProcess is the class of ontology types realized as processors.
	NifiProcess = NSNifi + "NifiProcess"
	// NifiService is the class of ontology types realized as controller services.
	NifiService = NSNifi + "NifiService"
	// NifiType holds the engine type identifier of an ontology type.
	NifiType = NSNifi + "type"
	// NifiKey holds the remote property, variable or relationship name of a path.
	NifiKey = NSNifi + "key"
	// NifiRemoteID is the reserved path under which correlations are written back.
	NifiRemoteID = NSNifi + "remoteId"
	// NifiRemoteGroup records the group the correlated object lives in.
	NifiRemoteGroup = NSNifi + "remoteGroup"
	// NifiIncomingChannel is the reader path emitted for generated processor shapes.
	NifiIncomingChannel = NSNifi + "INCOMING_CHANNEL"
)
