// Package schema is the runtime reflection model that drives the text and
// binary codecs.
//
// A Schema holds tables, structs and enums. Tables are sparse records
// addressed through a field offset table; structs are fixed-layout inline
// records whose fields sit at the byte offsets computed by the loader.
// Every query on an Object takes a field index obtained from FieldIndex;
// passing an index outside the object's field list is a programming error
// and panics.
//
// Schemas are usually loaded from YAML:
//
//	s, err := schema.Load("config.schema.yaml")
//	if err != nil {
//	    return err
//	}
//	root := s.RootTable()
//
// A loaded Schema is never mutated and may be shared by any number of
// goroutines.
package schema
