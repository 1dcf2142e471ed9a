// Package pack models data packages: ordered sets of data objects together
// with the relationships among them. A package can assemble its OAI-ORE
// resource map, round-trip through a JSON manifest for storage, and export
// itself as a BagIt bag with the resource map and system metadata riding
// along as tag files.
//
// The types here are deliberately plain. A DataObject owns its bytes
// (in memory or on disk) and its system metadata record; a Package owns
// its members and relation rows. Nothing in this package talks to the
// network.
package pack
