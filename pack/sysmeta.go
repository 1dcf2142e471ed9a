package pack

import "time"

// Permission names an access rule may grant.
const (
	ReadPermission   = "read"
	WritePermission  = "write"
	ChangePermission = "changePermission"
)

// PublicSubject is the pseudo-subject naming everyone. A rule for it
// applies to any subject asking.
const PublicSubject = "public"

// An AccessRule grants one subject a list of permissions.
type AccessRule struct {
	Subject     string
	Permissions []string
}

// An AccessPolicy is the list of access rules guarding one object.
type AccessPolicy struct {
	Allow []AccessRule
}

// CanRead reports whether subject may read the object this policy guards.
// Holding write or changePermission implies read. Rules for the public
// pseudo-subject match every subject.
func (p AccessPolicy) CanRead(subject string) bool {
	for _, rule := range p.Allow {
		if rule.Subject != subject && rule.Subject != PublicSubject {
			continue
		}
		for _, perm := range rule.Permissions {
			switch perm {
			case ReadPermission, WritePermission, ChangePermission:
				return true
			}
		}
	}
	return false
}

// SystemMetadata is the repository-level record kept for a single data
// object: identity, fixity, format, rights, and obsolescence chain. It is
// distinct from whatever scientific metadata the object's bytes contain.
type SystemMetadata struct {
	Identifier        string
	FormatID          string
	Size              int64
	Checksum          string // hex encoded
	ChecksumAlgorithm string
	FileName          string
	RightsHolder      string
	Obsoletes         string
	ObsoletedBy       string
	DateUploaded      time.Time
	Access            AccessPolicy
}
