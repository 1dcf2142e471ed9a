package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	raven "github.com/getsentry/raven-go"
	"github.com/julienschmidt/httprouter"

	"github.com/ndlib/parcel/bagit"
	"github.com/ndlib/parcel/util"
)

// This file has the background process verifying the checksums of stored
// bags, and the HTTP handlers exposing the verification records.

// do not checksum a bag any more often than every 6 months
const defaultFixityInterval = 180 * 24 * time.Hour

// StartFixity starts the background goroutine watching the fixity
// schedule. Reading is rate limited to FixityRate MB/hour if that is set.
func (s *RESTServer) StartFixity() {
	s.fixitystop = make(chan struct{})
	s.fixitywg.Add(1)
	go s.fixityworker()
}

// StopFixity halts the background fixity process, blocking until it has
// exited. The process is not resumable once stopped.
func (s *RESTServer) StopFixity() {
	if s.fixitystop == nil {
		return
	}
	close(s.fixitystop)
	s.fixitywg.Wait()
	s.fixitystop = nil
}

func (s *RESTServer) fixityworker() {
	defer s.fixitywg.Done()
	// convert MB/hour to bytes/second
	rate := float64(s.FixityRate) * 1000000 / 3600
	var r *util.RateCounter
	if rate > 0 {
		r = util.NewRateCounter(rate)
		defer r.Stop()
	}
	for {
		var wait bool
		id := s.FixityDatabase.NextFixity(time.Now())
		if id == 0 {
			// nothing due. sleep and look again
			wait = true
		} else if err := s.fixityCheck(r, id); err != nil {
			// don't spin if the record cannot be updated
			wait = true
		}
		if wait {
			select {
			case <-time.After(time.Hour):
			case <-s.fixitystop:
				return
			}
			continue
		}
		select {
		case <-s.fixitystop:
			return
		default:
		}
	}
}

// fixityCheck verifies the bag for the package named by the given fixity
// record, writes the outcome back, and schedules the package's next check.
func (s *RESTServer) fixityCheck(r *util.RateCounter, id int64) error {
	fx := s.FixityDatabase.GetFixity(id)
	if fx == nil {
		return errors.New("fixity record disappeared")
	}
	log.Println("Fixity check", fx.Package)
	err := s.verifyBag(r, fx.Package)
	// If we are shutting down the verification was interrupted. Leave
	// the record scheduled so it runs again on the next start.
	select {
	case <-s.fixitystop:
		return ErrStopped
	default:
	}
	fx.Status = "ok"
	if err != nil {
		fx.Status = "error"
		if isMismatch(err) {
			fx.Status = "mismatch"
		}
		fx.Notes = err.Error()
		log.Println("Fixity check", fx.Package, err)
		raven.CaptureError(err, map[string]string{"package": fx.Package})
	}
	_, err2 := s.FixityDatabase.UpdateFixity(*fx)
	if err2 != nil {
		log.Println("Fixity check", fx.Package, err2)
		return err2
	}
	// keep the package under audit no matter how this check went
	_, err2 = s.FixityDatabase.UpdateFixity(Fixity{
		Package:       fx.Package,
		ScheduledTime: time.Now().Add(s.FixityInterval),
	})
	if err2 != nil {
		log.Println("Fixity check", fx.Package, err2)
	}
	return err2
}

// verifyBag reads the package's bag out of storage and checks every
// payload and tag file against the bag's manifests.
func (s *RESTServer) verifyBag(r *util.RateCounter, pkg string) error {
	rac, size, err := s.BagStore.Open(bagKey(pkg))
	if err != nil {
		return err
	}
	defer rac.Close()
	bag, err := bagit.NewReader(&rateReaderAt{reader: rac, rate: r, stop: s.fixitystop}, size)
	if err != nil {
		return err
	}
	return bag.Verify()
}

// isMismatch tells apart verification failures meaning the content does
// not match what was archived from read errors and other problems.
func isMismatch(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "bad checksum") ||
		strings.Contains(msg, "is missing") ||
		strings.Contains(msg, "not in any manifest")
}

// ErrStopped is returned from reads interrupted by a fixity shutdown.
var ErrStopped = errors.New("fixity worker stopped")

// rateReaderAt limits how quickly a bag is read, and cuts the read short
// when the stop channel closes. A nil RateCounter applies no limit.
type rateReaderAt struct {
	reader io.ReaderAt
	rate   *util.RateCounter
	stop   chan struct{}
}

func (rr *rateReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if rr.rate != nil {
		// wait for the rate limiter
		select {
		case <-rr.rate.OK():
		case <-rr.stop:
			return 0, ErrStopped
		}
	}
	n, err := rr.reader.ReadAt(p, off)
	if rr.rate != nil && n > 0 {
		rr.rate.Use(int64(n))
	}
	return n, err
}

var errBadStatus = errors.New("unknown status value")

// statusValidate checks a status value received from a client. The empty
// string is allowed: it means "scheduled" on updates and "any" in
// searches.
func statusValidate(status string) (string, error) {
	switch status {
	case "", "scheduled", "ok", "error", "mismatch":
		return status, nil
	}
	return "", errBadStatus
}

// timeValidate parses a time value received from a client. Times are
// either RFC3339 or a bare date. Empty and "*" mean the zero time.
func timeValidate(input string) (time.Time, error) {
	if input == "" || input == "*" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, input)
	if err != nil {
		t, err = time.Parse("2006-01-02", input)
	}
	return t, err
}

// GetFixityHandler handles requests to GET /fixity, returning the fixity
// records matching the query parameters "start", "end", "package", and
// "status". Start and end bound the scheduled time; empty or "*" means
// unbounded.
func (s *RESTServer) GetFixityHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.FixityDatabase == nil {
		w.WriteHeader(503)
		fmt.Fprintln(w, "fixity checking is disabled")
		return
	}
	start, err := timeValidate(r.FormValue("start"))
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, "bad start:", err.Error())
		return
	}
	end, err := timeValidate(r.FormValue("end"))
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, "bad end:", err.Error())
		return
	}
	status, err := statusValidate(r.FormValue("status"))
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, "bad status:", err.Error())
		return
	}
	records := s.FixityDatabase.SearchFixity(start, end, r.FormValue("package"), status)
	writeHTMLorJSON(w, r, fixityTemplate, records)
}

// GetFixityIdHandler handles requests to GET /fixity/:id
func (s *RESTServer) GetFixityIdHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.FixityDatabase == nil {
		w.WriteHeader(503)
		fmt.Fprintln(w, "fixity checking is disabled")
		return
	}
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, err.Error())
		return
	}
	record := s.FixityDatabase.GetFixity(id)
	if record == nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "Unknown fixity record")
		return
	}
	writeHTMLorJSON(w, r, fixityRecordTemplate, record)
}

// PostFixityHandler handles requests to POST /fixity, scheduling an
// out-of-band verification of one package. The body is a JSON fixity
// record; only Package, ScheduledTime, and Notes are taken, and a zero
// scheduled time means now.
func (s *RESTServer) PostFixityHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.FixityDatabase == nil {
		w.WriteHeader(503)
		fmt.Fprintln(w, "fixity checking is disabled")
		return
	}
	var record Fixity
	err := json.NewDecoder(r.Body).Decode(&record)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, err.Error())
		return
	}
	if s.Registry.Lookup(record.Package) == nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "Unknown package identifier")
		return
	}
	if record.ScheduledTime.IsZero() {
		record.ScheduledTime = time.Now()
	}
	record.ID = 0
	record.Status = "scheduled"
	id, err := s.FixityDatabase.UpdateFixity(record)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/fixity/%d", id))
	w.WriteHeader(201)
}

// DeleteFixityIdHandler handles requests to DELETE /fixity/:id. Only
// checks still in "scheduled" status can be removed; the others are the
// audit trail.
func (s *RESTServer) DeleteFixityIdHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.FixityDatabase == nil {
		w.WriteHeader(503)
		fmt.Fprintln(w, "fixity checking is disabled")
		return
	}
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, err.Error())
		return
	}
	record := s.FixityDatabase.GetFixity(id)
	if record == nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "Unknown fixity record")
		return
	}
	if record.Status != "scheduled" {
		w.WriteHeader(400)
		fmt.Fprintln(w, "only scheduled checks can be removed")
		return
	}
	err = s.FixityDatabase.DeleteFixity(id)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
	}
}

var (
	fixityTemplate = template.Must(template.New("fixity").Parse(`<html>
<h1>Fixity Checks</h1>
<table>
<tr><th>ID</th><th>Package</th><th>Scheduled</th><th>Status</th><th>Notes</th></tr>
{{ range . }}
	<tr><td><a href="/fixity/{{ .ID }}">{{ .ID }}</a></td>
	<td><a href="/package/{{ .Package }}">{{ .Package }}</a></td>
	<td>{{ .ScheduledTime }}</td>
	<td>{{ .Status }}</td>
	<td>{{ .Notes }}</td></tr>
{{ end }}
</table>
</html>`))

	fixityRecordTemplate = template.Must(template.New("fixityrecord").Parse(`<html>
<h1>Fixity Check {{ .ID }}</h1>
<dl>
<dt>Package</dt><dd><a href="/package/{{ .Package }}">{{ .Package }}</a></dd>
<dt>Scheduled</dt><dd>{{ .ScheduledTime }}</dd>
<dt>Status</dt><dd>{{ .Status }}</dd>
<dt>Notes</dt><dd>{{ .Notes }}</dd>
</dl>
<a href="/fixity">Back</a>
</html>`))
)
