package server

import (
	"log"
	"time"

	"github.com/BurntSushi/migration"

	"github.com/ndlib/parcel/pack"
)

// A RegistryDB is the record of every package this server has accepted.
// It maps package identifiers to their manifests. The manifest holds no
// member content; that lives in the bag store.
type RegistryDB interface {
	// Lookup returns the manifest registered under id.
	// Returns nil if there is nothing registered under that id.
	Lookup(id string) *pack.Package

	// Set registers the manifest under id, replacing any earlier record.
	Set(id string, p *pack.Package)

	// List returns the identifier of every registered package.
	List() []string

	// Delete removes the record registered under id.
	Delete(id string) error
}

// A Fixity is one checksum verification of a stored bag, either pending
// ("scheduled") or finished ("ok", "error", "mismatch").
type Fixity struct {
	ID            int64
	Package       string
	ScheduledTime time.Time
	Status        string
	Notes         string
}

// A FixityDB tracks the past and future checksum verifications of stored
// bags. Records that have left "scheduled" status are a permanent audit
// trail: they cannot be altered or removed through this interface.
type FixityDB interface {
	// NextFixity returns the id of the earliest record still scheduled
	// on or before the cutoff time. Returns 0 if nothing is due.
	NextFixity(cutoff time.Time) int64

	// GetFixity returns the record with the given id, or nil if there
	// is none.
	GetFixity(id int64) *Fixity

	// SearchFixity returns every record inside the given bounds. Zero
	// times mean unbounded, and empty strings match any package or
	// status.
	SearchFixity(start, end time.Time, pkg string, status string) []*Fixity

	// UpdateFixity stores the record, creating it if its ID is 0, and
	// returns the record's id. A new record with no status is
	// "scheduled". Updates apply only while the record is still
	// scheduled; otherwise they are silently skipped.
	UpdateFixity(record Fixity) (int64, error)

	// DeleteFixity removes the record with the given id. Only scheduled
	// records are removed.
	DeleteFixity(id int64) error

	// LookupCheck returns the earliest pending check for the package,
	// or the zero time if none is scheduled.
	LookupCheck(pkg string) (time.Time, error)
}

// A Database is what every storage backend provides: both the package
// registry and the fixity ledger, sharing one connection.
type Database interface {
	RegistryDB
	FixityDB
}

// The migration package only knows the version-table queries of the
// databases it ships adapters for, so we supply our own. Modeled on the
// adapters inside github.com/BurntSushi/migration.
type dbVersion struct {
	GetSQL    string // returns one row and column holding the version
	SetSQL    string // takes the new version as its one parameter
	CreateSQL string // creates the version table
}

func (d dbVersion) Get(tx migration.LimitedTx) (int, error) {
	var version int
	err := tx.QueryRow(d.GetSQL).Scan(&version)
	if err != nil {
		// treat any error as the version table not existing yet
		log.Println(err)
		return 0, nil
	}
	return version, nil
}

func (d dbVersion) Set(tx migration.LimitedTx, version int) error {
	err := d.set(tx, version)
	if err == nil {
		return nil
	}
	// assume the version table is missing. make it and try again.
	_, err = tx.Exec(d.CreateSQL)
	if err != nil {
		return err
	}
	err = d.set(tx, 0)
	if err != nil {
		return err
	}
	return d.set(tx, version)
}

func (d dbVersion) set(tx migration.LimitedTx, version int) error {
	_, err := tx.Exec(d.SetSQL, version)
	return err
}
