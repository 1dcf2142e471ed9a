package server

import (
	"database/sql"
	"encoding/json"
	"log"
	"strings"
	"time"

	// imported without _ since we use mysql.NullTime
	"github.com/BurntSushi/migration"
	"github.com/go-sql-driver/mysql"

	"github.com/ndlib/parcel/pack"
)

// This file implements the registry and fixity interfaces using MySQL as
// the storage medium.

type msqlCache struct {
	db *sql.DB
}

var _ Database = &msqlCache{}

// The migrations to be performed, in order. Only ever append to this list;
// the position of a migration is its version number.
var mysqlMigrations = []migration.Migrator{
	mysqlschema1,
}

// the version-table queries for MySQL, for dbVersion
var mysqlVersioning = dbVersion{
	GetSQL:    `SELECT max(version) FROM migration_version`,
	SetSQL:    `INSERT INTO migration_version (version, applied) VALUES (?, now())`,
	CreateSQL: `CREATE TABLE migration_version (version INTEGER, applied datetime)`,
}

// NewMysqlCache connects to the MySQL database named by dial, bringing its
// schema up to date first.
func NewMysqlCache(dial string) (*msqlCache, error) {
	db, err := migration.OpenWith(
		"mysql",
		dial,
		mysqlMigrations,
		mysqlVersioning.Get,
		mysqlVersioning.Set)
	if err != nil {
		log.Println("Open MySQL:", err)
		return nil, err
	}
	return &msqlCache{db: db}, nil
}

func (ms *msqlCache) Lookup(id string) *pack.Package {
	const query = `SELECT value FROM packages WHERE package_id = ? LIMIT 1`

	var value []byte
	err := ms.db.QueryRow(query, id).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			// whatever the problem is, treat it as a miss
			log.Println("Registry MySQL:", err)
		}
		return nil
	}
	p := new(pack.Package)
	err = json.Unmarshal(value, p)
	if err != nil {
		log.Println("Registry MySQL:", err)
		return nil
	}
	return p
}

func (ms *msqlCache) Set(id string, p *pack.Package) {
	const query = `
		INSERT INTO packages (package_id, created, modified, size, members, value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE created=?, modified=?, size=?, members=?, value=?`

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
		log.Println("Registry MySQL:", err)
		return
	}
	now := time.Now()
	_, err = ms.db.Exec(query, id, created, now, size, len(members), value,
		created, now, size, len(members), value)
	if err != nil {
		log.Println("Registry MySQL:", err)
	}
}

func (ms *msqlCache) List() []string {
	const query = `SELECT package_id FROM packages ORDER BY package_id`

	rows, err := ms.db.Query(query)
	if err != nil {
		log.Println("Registry MySQL:", err)
		return nil
	}
	defer rows.Close()
	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			log.Println("Registry MySQL:", err)
			continue
		}
		result = append(result, id)
	}
	return result
}

func (ms *msqlCache) Delete(id string) error {
	const query = `DELETE FROM packages WHERE package_id = ?`

	_, err := ms.db.Exec(query, id)
	return err
}

func (ms *msqlCache) NextFixity(cutoff time.Time) int64 {
	const query = `
		SELECT id
		FROM fixity
		WHERE status = "scheduled" AND scheduled_time <= ?
		ORDER BY scheduled_time
		LIMIT 1`

	var id int64
	err := ms.db.QueryRow(query, cutoff).Scan(&id)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Println("NextFixity MySQL:", err)
		}
		return 0
	}
	return id
}

func (ms *msqlCache) GetFixity(id int64) *Fixity {
	const query = `
		SELECT id, package_id, scheduled_time, status, notes
		FROM fixity
		WHERE id = ?
		LIMIT 1`

	fx, err := scanMysqlFixity(ms.db.QueryRow(query, id))
	if err != nil {
		if err != sql.ErrNoRows {
			log.Println("GetFixity MySQL:", err)
		}
		return nil
	}
	return fx
}

func (ms *msqlCache) SearchFixity(start, end time.Time, pkg string, status string) []*Fixity {
	query := `
		SELECT id, package_id, scheduled_time, status, notes
		FROM fixity`
	var conditions []string
	var args []interface{}
	add := func(clause string, v interface{}) {
		conditions = append(conditions, clause)
		args = append(args, v)
	}
	if !start.IsZero() {
		add("scheduled_time >= ?", start)
	}
	if !end.IsZero() {
		add("scheduled_time <= ?", end)
	}
	if pkg != "" {
		add("package_id = ?", pkg)
	}
	if status != "" {
		add("status = ?", status)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY scheduled_time"

	rows, err := ms.db.Query(query, args...)
	if err != nil {
		log.Println("SearchFixity MySQL:", err)
		return nil
	}
	defer rows.Close()
	var result []*Fixity
	for rows.Next() {
		fx, err := scanMysqlFixity(rows)
		if err != nil {
			log.Println("SearchFixity MySQL:", err)
			continue
		}
		result = append(result, fx)
	}
	return result
}

func (ms *msqlCache) UpdateFixity(record Fixity) (int64, error) {
	if record.Status == "" {
		record.Status = "scheduled"
	}
	if record.ID == 0 {
		const query = `INSERT INTO fixity (package_id, scheduled_time, status, notes) VALUES (?,?,?,?)`

		result, err := ms.db.Exec(query,
			record.Package, record.ScheduledTime, record.Status, record.Notes)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}
	// a record that has left "scheduled" is history and stays as it is
	const query = `
		UPDATE fixity
		SET package_id = ?, scheduled_time = ?, status = ?, notes = ?
		WHERE id = ? AND status = "scheduled"`

	_, err := ms.db.Exec(query,
		record.Package, record.ScheduledTime, record.Status, record.Notes, record.ID)
	return record.ID, err
}

func (ms *msqlCache) DeleteFixity(id int64) error {
	const query = `DELETE FROM fixity WHERE id = ? AND status = "scheduled"`

	_, err := ms.db.Exec(query, id)
	return err
}

func (ms *msqlCache) LookupCheck(pkg string) (time.Time, error) {
	const query = `
		SELECT scheduled_time
		FROM fixity
		WHERE package_id = ? AND status = "scheduled"
		ORDER BY scheduled_time
		LIMIT 1`

	var when mysql.NullTime
	err := ms.db.QueryRow(query, pkg).Scan(&when)
	if err == sql.ErrNoRows {
		err = nil
	}
	if when.Valid {
		return when.Time, err
	}
	return time.Time{}, err
}

// scanMysqlFixity reads one fixity row, translating the nullable time.
func scanMysqlFixity(s scanner) (*Fixity, error) {
	var when mysql.NullTime
	fx := new(Fixity)
	err := s.Scan(&fx.ID, &fx.Package, &when, &fx.Status, &fx.Notes)
	if err != nil {
		return nil, err
	}
	if when.Valid {
		fx.ScheduledTime = when.Time
	}
	return fx, nil
}

// The schema migrations, one function per version. Append new ones to
// mysqlMigrations above.

func mysqlschema1(tx migration.LimitedTx) error {
	var s = []string{
		`CREATE TABLE IF NOT EXISTS packages (
		id int PRIMARY KEY AUTO_INCREMENT,
		package_id varchar(255),
		created datetime,
		modified datetime,
		size bigint,
		members int,
		value longtext,
		UNIQUE INDEX packages_package_id (package_id))`,

		`CREATE TABLE IF NOT EXISTS fixity (
		id int PRIMARY KEY AUTO_INCREMENT,
		package_id varchar(255),
		scheduled_time datetime,
		status varchar(32),
		notes text,
		INDEX fixity_package_id (package_id),
		INDEX fixity_scheduled_time (scheduled_time),
		INDEX fixity_status (status))`,
	}
	return execlist(tx, s)
}

// execlist runs each statement in turn, stopping at the first error. The
// mysql driver does not take compound statements in one Exec.
func execlist(tx migration.LimitedTx, stms []string) error {
	var err error
	for _, s := range stms {
		_, err = tx.Exec(s)
		if err != nil {
			break
		}
	}
	return err
}
