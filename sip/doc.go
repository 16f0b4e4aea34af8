/*
Package sip assembles submission information packages.

A File pairs a local source file with the path it gets inside the package.
A Generator characterizes the file with a scraper.Scraper and attaches the
resulting technical metadata, events and agents to it. BuildStructuralMap
turns a list of files into a directory tree of mets.Div values, records how
the tree was made, and then moves metadata shared by all children of a
division up to the division itself (BundleMetadata). A SIP ties the tree to
a mets.Document, and Finalize writes the document, its signature and the
payload into a tar stream.

Timestamps come from a Run, which captures one instant when it is created.
Everything built during a run carries that same instant, so events created
for different files compare equal and can be bundled.
*/
package sip
