package stores

import (
	"github.com/openfroyo/nifictl/pkg/rdf"
)

// Pattern names.
const (
	PatternProcessAttributes = "process-attributes"
	PatternChannelAttributes = "channel-attributes"
	PatternDirectLinks       = "direct-links"
	PatternWriterLinks       = "writer-links"
	PatternReaderLinks       = "reader-links"
)

// shapeAttributes flattens every ontology shape into one row per
// (type, path, attribute) so that optional shape lookups become a single
// LEFT JOIN. A type may spread its properties over several shape nodes.
const shapeAttributes = `
WITH shape_attr AS (
    SELECT shp.subject    AS type,
           path.object    AS path,
           attr.predicate AS attr,
           attr.object    AS value,
           prop.id        AS prop_id,
           attr.id        AS id
      FROM triples shp
      JOIN triples prop ON prop.subject = shp.object AND prop.predicate = @sh_property
      JOIN triples path ON path.subject = prop.object AND path.predicate = @sh_path
      JOIN triples attr ON attr.subject = prop.object
     WHERE shp.predicate = @shape
)`

func baseParams() map[string]rdf.Term {
	return map[string]rdf.Term{
		"rdf_type":    rdf.IRI(rdf.RDFType),
		"shape":       rdf.IRI(rdf.ConnShape),
		"sh_property": rdf.IRI(rdf.SHProperty),
		"sh_path":     rdf.IRI(rdf.SHPath),
	}
}

// ProcessAttributes matches every attribute fact of every instance of an
// ontology type of the given class (nifi:NifiProcess or nifi:NifiService):
//
//	?tys a <class> ; :processProperties [ nifi:type ?ty ] ; :shape [ sh:property [ sh:path ?p ] ] .
//	?subject a ?tys ; ?p ?value .
//	OPTIONAL { ?tys :shape [ sh:property [ sh:path ?p ; sh:datatype ?datatype ] ] }
//	OPTIONAL { ?tys :shape [ sh:property [ sh:path ?p ; sh:class ?class ] ] }
//	OPTIONAL { ?tys :shape [ sh:property [ sh:path ?p ; nifi:key ?nifi_key ] ] }
func ProcessAttributes(class string) rdf.Pattern {
	params := baseParams()
	params["class"] = rdf.IRI(class)
	params["process_properties"] = rdf.IRI(rdf.ConnProcessProperties)
	params["nifi_type"] = rdf.IRI(rdf.NifiType)
	params["sh_datatype"] = rdf.IRI(rdf.SHDatatype)
	params["sh_class"] = rdf.IRI(rdf.SHClass)
	params["nifi_key"] = rdf.IRI(rdf.NifiKey)

	return rdf.Pattern{
		Name: PatternProcessAttributes,
		Query: shapeAttributes + `
SELECT inst.subject  AS subject,
       ty.object     AS ty,
       val.predicate AS p,
       val.object    AS value,
       dt.value      AS datatype,
       cl.value      AS class,
       nk.value      AS nifi_key
  FROM triples tys
  JOIN triples pp   ON pp.subject = tys.subject AND pp.predicate = @process_properties
  JOIN triples ty   ON ty.subject = pp.object AND ty.predicate = @nifi_type
  JOIN shape_attr sp ON sp.type = tys.subject AND sp.attr = @sh_path
  JOIN triples inst ON inst.predicate = @rdf_type AND inst.object = tys.subject
  JOIN triples val  ON val.subject = inst.subject AND val.predicate = sp.path
  LEFT JOIN shape_attr dt ON dt.type = tys.subject AND dt.path = sp.path AND dt.attr = @sh_datatype
  LEFT JOIN shape_attr cl ON cl.type = tys.subject AND cl.path = sp.path AND cl.attr = @sh_class
  LEFT JOIN shape_attr nk ON nk.type = tys.subject AND nk.path = sp.path AND nk.attr = @nifi_key
 WHERE tys.predicate = @rdf_type AND tys.object = @class
 ORDER BY inst.id, sp.prop_id, val.id, dt.id, cl.id, nk.id`,
		Params: params,
		Vars:   []string{"subject", "ty", "p", "value", "datatype", "class", "nifi_key"},
	}
}

// ChannelAttributes matches channel instances referenced through a channel
// path of the given role (conn:WriterChannel or conn:ReaderChannel), with
// their keyed attributes. A channel without keyed attributes yields one row
// with nifi_key and value unbound.
//
//	?srcTy a nifi:NifiProcess ; :shape [ sh:property [ sh:class <role> ; sh:path ?path ] ] .
//	?src a ?srcTy ; ?path ?subject .
//	?subject a ?channel_type . ?channel_type :shape ?any .
//	OPTIONAL { ?channel_type :shape [ sh:property [ sh:path ?p ; nifi:key ?nifi_key ] ] . ?subject ?p ?value }
func ChannelAttributes(role string) rdf.Pattern {
	params := baseParams()
	params["role"] = rdf.IRI(role)
	params["process_class"] = rdf.IRI(rdf.NifiProcess)
	params["sh_class"] = rdf.IRI(rdf.SHClass)
	params["nifi_key"] = rdf.IRI(rdf.NifiKey)

	return rdf.Pattern{
		Name: PatternChannelAttributes,
		Query: shapeAttributes + `,
keyed AS (
    SELECT ck.type     AS type,
           val.subject AS subject,
           ck.value    AS nifi_key,
           val.object  AS value,
           ck.prop_id  AS prop_id,
           val.id      AS val_id
      FROM shape_attr ck
      JOIN triples val ON val.predicate = ck.path
     WHERE ck.attr = @nifi_key
)
SELECT chan.subject AS subject,
       chan.object  AS channel_type,
       kv.nifi_key  AS nifi_key,
       kv.value     AS value
  FROM shape_attr role
  JOIN triples sty    ON sty.subject = role.type AND sty.predicate = @rdf_type AND sty.object = @process_class
  JOIN triples src    ON src.predicate = @rdf_type AND src.object = role.type
  JOIN triples ref    ON ref.subject = src.subject AND ref.predicate = role.path
  JOIN triples chan   ON chan.subject = ref.object AND chan.predicate = @rdf_type
  JOIN triples cshape ON cshape.subject = chan.object AND cshape.predicate = @shape
  LEFT JOIN keyed kv  ON kv.type = chan.object AND kv.subject = chan.subject
 WHERE role.attr = @sh_class AND role.value = @role
 GROUP BY chan.subject, chan.object, kv.nifi_key, kv.value
 ORDER BY MIN(chan.id), MIN(kv.prop_id), MIN(kv.val_id)`,
		Params: params,
		Vars:   []string{"subject", "channel_type", "nifi_key", "value"},
	}
}

// DirectLinks matches processor-to-processor links declared through a
// conn:NifiChannel node. The key is the writer path's nifi:key, if any.
//
//	_:c a :NifiChannel ; :writer ?w ; :reader ?r .
//	?srcTy a nifi:NifiProcess ; :shape [ sh:property [ sh:class :WriterChannel ; sh:path ?sp ] ] .
//	?tgtTy a nifi:NifiProcess ; :shape [ sh:property [ sh:class :ReaderChannel ; sh:path ?tp ] ] .
//	?source a ?srcTy ; ?sp ?w .  ?target a ?tgtTy ; ?tp ?r .
//	OPTIONAL { ?srcTy :shape [ sh:property [ sh:path ?sp ; nifi:key ?key ] ] }
func DirectLinks() rdf.Pattern {
	params := baseParams()
	params["nifi_channel"] = rdf.IRI(rdf.ConnNifiChannel)
	params["conn_writer"] = rdf.IRI(rdf.ConnWriter)
	params["conn_reader"] = rdf.IRI(rdf.ConnReader)
	params["writer_channel"] = rdf.IRI(rdf.ConnWriterChannel)
	params["reader_channel"] = rdf.IRI(rdf.ConnReaderChannel)
	params["process_class"] = rdf.IRI(rdf.NifiProcess)
	params["sh_class"] = rdf.IRI(rdf.SHClass)
	params["nifi_key"] = rdf.IRI(rdf.NifiKey)

	return rdf.Pattern{
		Name: PatternDirectLinks,
		Query: shapeAttributes + `
SELECT src.subject AS source,
       tgt.subject AS target,
       nk.value    AS "key"
  FROM triples ch
  JOIN triples w     ON w.subject = ch.subject AND w.predicate = @conn_writer
  JOIN triples r     ON r.subject = ch.subject AND r.predicate = @conn_reader
  JOIN shape_attr wr ON wr.attr = @sh_class AND wr.value = @writer_channel
  JOIN triples wty   ON wty.subject = wr.type AND wty.predicate = @rdf_type AND wty.object = @process_class
  JOIN triples src   ON src.predicate = @rdf_type AND src.object = wr.type
  JOIN triples sref  ON sref.subject = src.subject AND sref.predicate = wr.path AND sref.object = w.object
  JOIN shape_attr rr ON rr.attr = @sh_class AND rr.value = @reader_channel
  JOIN triples rty   ON rty.subject = rr.type AND rty.predicate = @rdf_type AND rty.object = @process_class
  JOIN triples tgt   ON tgt.predicate = @rdf_type AND tgt.object = rr.type
  JOIN triples tref  ON tref.subject = tgt.subject AND tref.predicate = rr.path AND tref.object = r.object
  LEFT JOIN shape_attr nk ON nk.type = wr.type AND nk.path = wr.path AND nk.attr = @nifi_key
 WHERE ch.predicate = @rdf_type AND ch.object = @nifi_channel
 GROUP BY src.subject, tgt.subject, nk.value
 ORDER BY MIN(ch.id), MIN(sref.id), MIN(tref.id), MIN(nk.id)`,
		Params: params,
		Vars:   []string{"source", "target", "key"},
	}
}

// WriterLinks matches processor-to-channel links: a processor whose writer
// path points at a typed channel instance. The key is the writer path's
// nifi:key, if any.
func WriterLinks() rdf.Pattern {
	params := baseParams()
	params["writer_channel"] = rdf.IRI(rdf.ConnWriterChannel)
	params["process_class"] = rdf.IRI(rdf.NifiProcess)
	params["sh_class"] = rdf.IRI(rdf.SHClass)
	params["nifi_key"] = rdf.IRI(rdf.NifiKey)

	return rdf.Pattern{
		Name: PatternWriterLinks,
		Query: shapeAttributes + `
SELECT src.subject  AS source,
       chan.subject AS target,
       nk.value     AS "key"
  FROM shape_attr role
  JOIN triples sty    ON sty.subject = role.type AND sty.predicate = @rdf_type AND sty.object = @process_class
  JOIN triples src    ON src.predicate = @rdf_type AND src.object = role.type
  JOIN triples ref    ON ref.subject = src.subject AND ref.predicate = role.path
  JOIN triples chan   ON chan.subject = ref.object AND chan.predicate = @rdf_type
  JOIN triples cshape ON cshape.subject = chan.object AND cshape.predicate = @shape
  LEFT JOIN shape_attr nk ON nk.type = role.type AND nk.path = role.path AND nk.attr = @nifi_key
 WHERE role.attr = @sh_class AND role.value = @writer_channel
 GROUP BY src.subject, chan.subject, nk.value
 ORDER BY MIN(ref.id), MIN(nk.id)`,
		Params: params,
		Vars:   []string{"source", "target", "key"},
	}
}

// ReaderLinks matches channel-to-processor links: a processor whose reader
// path points at a typed channel instance. Port-sourced links carry no key.
func ReaderLinks() rdf.Pattern {
	params := baseParams()
	params["reader_channel"] = rdf.IRI(rdf.ConnReaderChannel)
	params["process_class"] = rdf.IRI(rdf.NifiProcess)
	params["sh_class"] = rdf.IRI(rdf.SHClass)

	return rdf.Pattern{
		Name: PatternReaderLinks,
		Query: shapeAttributes + `
SELECT chan.subject AS source,
       tgt.subject  AS target
  FROM shape_attr role
  JOIN triples tty    ON tty.subject = role.type AND tty.predicate = @rdf_type AND tty.object = @process_class
  JOIN triples tgt    ON tgt.predicate = @rdf_type AND tgt.object = role.type
  JOIN triples ref    ON ref.subject = tgt.subject AND ref.predicate = role.path
  JOIN triples chan   ON chan.subject = ref.object AND chan.predicate = @rdf_type
  JOIN triples cshape ON cshape.subject = chan.object AND cshape.predicate = @shape
 WHERE role.attr = @sh_class AND role.value = @reader_channel
 GROUP BY chan.subject, tgt.subject
 ORDER BY MIN(ref.id)`,
		Params: params,
		Vars:   []string{"source", "target", "key"},
	}
}
