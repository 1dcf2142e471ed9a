package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/cznic/ql/driver"

	"github.com/ndlib/parcel/pack"
)

// This file implements the registry and fixity interfaces using the QL
// embedded database. It is intended for development and small
// installations; use MySQL for anything bigger.

type qlCache struct {
	db *sql.DB
}

var _ Database = &qlCache{}

// The manifest is stored as a JSON blob. The other columns are pulled out
// for indexing and the curiosity of whoever is poking at the database.
const qlSchema = `
	CREATE TABLE IF NOT EXISTS packages (
		package_id string,
		created time,
		modified time,
		size int,
		members int,
		value blob
	);
	CREATE INDEX IF NOT EXISTS packageid ON packages (package_id);

	CREATE TABLE IF NOT EXISTS fixity (
		package_id string,
		scheduled_time time,
		status string,
		notes string
	);
	CREATE INDEX IF NOT EXISTS fixitypackage ON fixity (package_id);
	CREATE INDEX IF NOT EXISTS fixitytime ON fixity (scheduled_time);
	CREATE INDEX IF NOT EXISTS fixitystatus ON fixity (status);
`

// NewQlCache opens the QL database in the given file, creating the tables
// if needed. The special filename "memory" keeps the database in memory.
func NewQlCache(filename string) (*qlCache, error) {
	var db *sql.DB
	var err error
	if filename == "memory" {
		db, err = sql.Open("ql-mem", "mem.db")
	} else {
		db, err = sql.Open("ql", filename)
	}
	if err == nil {
		_, err = qlExec(db, qlSchema)
	}
	if err != nil {
		log.Println("Open QL:", err)
		return nil, err
	}
	return &qlCache{db: db}, nil
}

func (qc *qlCache) Lookup(id string) *pack.Package {
	const query = `SELECT value FROM packages WHERE package_id == ?1 LIMIT 1`

	var value []byte
	err := qc.db.QueryRow(query, id).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Println("Registry QL:", err)
		}
		return nil
	}
	p := new(pack.Package)
	if json.Unmarshal(value, p) != nil {
		return nil
	}
	return p
}

func (qc *qlCache) Set(id string, p *pack.Package) {
	const dbUpdate = `UPDATE packages SET created = ?2, modified = ?3, size = ?4, members = ?5, value = ?6 WHERE package_id == ?1`
	const dbInsert = `INSERT INTO packages VALUES (?1, ?2, ?3, ?4, ?5, ?6)`

	members := p.Members()
	var size int64
	var created time.Time // the earliest member upload
	for _, obj := range members {
		size += obj.Size
		if !obj.DateUploaded.IsZero() &&
			(created.IsZero() || obj.DateUploaded.Before(created)) {
			created = obj.DateUploaded
		}
	}
	value, err := json.Marshal(p)
	if err != nil {
		log.Println("Registry QL:", err)
		return
	}
	now := time.Now()
	result, err := qlExec(qc.db, dbUpdate, id, created, now, size, len(members), value)
	var nrows int64
	if err == nil {
		nrows, err = result.RowsAffected()
	}
	if err == nil && nrows == 0 {
		// there was no record to update, so make one
		_, err = qlExec(qc.db, dbInsert, id, created, now, size, len(members), value)
	}
	if err != nil {
		log.Println("Registry QL:", err)
	}
}

func (qc *qlCache) List() []string {
	const query = `SELECT package_id FROM packages ORDER BY package_id`

	rows, err := qc.db.Query(query)
	if err != nil {
		log.Println("Registry QL:", err)
		return nil
	}
	defer rows.Close()
	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			log.Println("Registry QL:", err)
			continue
		}
		result = append(result, id)
	}
	return result
}

func (qc *qlCache) Delete(id string) error {
	const query = `DELETE FROM packages WHERE package_id == ?1`

	_, err := qlExec(qc.db, query, id)
	return err
}

func (qc *qlCache) NextFixity(cutoff time.Time) int64 {
	const query = `
		SELECT id(), scheduled_time
		FROM fixity
		WHERE status == "scheduled" && scheduled_time <= ?1
		ORDER BY scheduled_time
		LIMIT 1`

	var id int64
	var when time.Time
	err := qc.db.QueryRow(query, cutoff).Scan(&id, &when)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Println("NextFixity QL:", err)
		}
		return 0
	}
	return id
}

func (qc *qlCache) GetFixity(id int64) *Fixity {
	const query = `
		SELECT id(), package_id, scheduled_time, status, notes
		FROM fixity
		WHERE id() == ?1
		LIMIT 1`

	fx, err := scanFixity(qc.db.QueryRow(query, id))
	if err != nil {
		if err != sql.ErrNoRows {
			log.Println("GetFixity QL:", err)
		}
		return nil
	}
	return fx
}

func (qc *qlCache) SearchFixity(start, end time.Time, pkg string, status string) []*Fixity {
	query := `
		SELECT id(), package_id, scheduled_time, status, notes
		FROM fixity`
	var conditions []string
	var args []interface{}
	// QL parameters are positional, so the clause list and the argument
	// list have to stay in step.
	add := func(clause string, v interface{}) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if !start.IsZero() {
		add("scheduled_time >= ?%d", start)
	}
	if !end.IsZero() {
		add("scheduled_time <= ?%d", end)
	}
	if pkg != "" {
		add("package_id == ?%d", pkg)
	}
	if status != "" {
		add("status == ?%d", status)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " && ")
	}
	query += " ORDER BY scheduled_time"

	rows, err := qc.db.Query(query, args...)
	if err != nil {
		log.Println("SearchFixity QL:", err)
		return nil
	}
	defer rows.Close()
	var result []*Fixity
	for rows.Next() {
		fx, err := scanFixity(rows)
		if err != nil {
			log.Println("SearchFixity QL:", err)
			continue
		}
		result = append(result, fx)
	}
	return result
}

func (qc *qlCache) UpdateFixity(record Fixity) (int64, error) {
	if record.Status == "" {
		record.Status = "scheduled"
	}
	if record.ID == 0 {
		const query = `INSERT INTO fixity VALUES (?1, ?2, ?3, ?4)`

		result, err := qlExec(qc.db, query,
			record.Package, record.ScheduledTime, record.Status, record.Notes)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}
	// a record that has left "scheduled" is history and stays as it is
	const query = `
		UPDATE fixity
		SET package_id = ?2, scheduled_time = ?3, status = ?4, notes = ?5
		WHERE id() == ?1 && status == "scheduled"`

	_, err := qlExec(qc.db, query,
		record.ID, record.Package, record.ScheduledTime, record.Status, record.Notes)
	return record.ID, err
}

func (qc *qlCache) DeleteFixity(id int64) error {
	const query = `
		DELETE FROM fixity
		WHERE id() == ?1 && status == "scheduled"`

	_, err := qlExec(qc.db, query, id)
	return err
}

func (qc *qlCache) LookupCheck(pkg string) (time.Time, error) {
	const query = `
		SELECT scheduled_time
		FROM fixity
		WHERE package_id == ?1 && status == "scheduled"
		ORDER BY scheduled_time ASC
		LIMIT 1`

	var when time.Time
	err := qc.db.QueryRow(query, pkg).Scan(&when)
	if err == sql.ErrNoRows {
		err = nil
	}
	return when, err
}

// scanner is the part of sql.Row and sql.Rows that scanFixity needs.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFixity(s scanner) (*Fixity, error) {
	fx := new(Fixity)
	err := s.Scan(&fx.ID, &fx.Package, &fx.ScheduledTime, &fx.Status, &fx.Notes)
	if err != nil {
		return nil, err
	}
	return fx, nil
}

// qlExec wraps a statement in a transaction, which QL insists on for
// anything that writes.
func qlExec(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	result, err := tx.Exec(query, args...)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	return result, tx.Commit()
}
