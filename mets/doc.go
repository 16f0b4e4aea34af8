/*
Package mets holds the manifest model of a submission information package and
writes it out as a METS document.

A Document owns one or more StructuralMaps. Each StructuralMap is a tree of
Divs, and the Divs reference DigitalObjects, the files carried in the
package. Every Div, DigitalObject and Stream has a MetadataSet. The items in
those sets implement Metadata and fall in three groups: technical metadata
(PREMIS objects, MIX, AudioMD, VideoMD, ADDML), digital provenance (PREMIS
events and agents) and descriptive metadata imported from outside.

Metadata items are compared by content. Key returns a digest over the whole
content of an item, including any items it links to, and two items with the
same key are interchangeable. A MetadataSet holds at most one item per key.
Because the key is computed from the content, an item must not be changed
once it has been added to a set.

Document.Write produces the XML. Identifiers in the output are name based
UUIDs computed from item keys and object paths, so writing the same tree
twice gives the same bytes, apart from the document OBJID and the creation
date which are fields of the Document.
*/
package mets
