// Package bagit implements enough of the BagIt specification to write and
// read the bags parcel uses to archive data packages. It is tailored to the
// store interface instead of the file system. Bags are serialized as zip
// files which do not use compression, and only MD5 and SHA256 checksums are
// supported in the manifest files.
//
// Specific items not implemented are fetch files and holey bags. The order
// of the tags in the bag-info.txt file is not preserved, nor are multiple
// occurrences of a tag.
//
// Checksums are generated for each file when a bag is created. After that,
// checksums are only calculated when a bag is (explicitly) verified. In
// particular, checksums are not calculated when reading content from a bag.
//
// The interface is designed to mirror the archive/zip interface as much as
// possible.
//
// The BagIt spec can be found at https://tools.ietf.org/html/draft-kunze-bagit-11.
package bagit

// Version is the version of the BagIt specification this package implements.
const Version = "0.97"

// Checksum holds the checksums we know for a given file. Entries which are
// empty were either not computed or not present in a manifest.
type Checksum struct {
	MD5    []byte
	SHA256 []byte
}
