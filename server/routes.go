package server

import (
	"encoding/json"
	"expvar"
	"fmt"
	"html/template"
	"log"
	"net/http"
	_ "net/http/pprof" // for the pprof side server
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/facebookgo/httpdown"
	"github.com/golang/groupcache/singleflight"
	"github.com/julienschmidt/httprouter"

	"github.com/ndlib/parcel/mapcache"
	"github.com/ndlib/parcel/oremap"
	"github.com/ndlib/parcel/stage"
	"github.com/ndlib/parcel/store"
)

// RESTServer holds the configuration for a Parcel REST API server.
//
// Fill in the public fields and call Run. Setting BagStore and CacheDir is
// enough for most uses; the remaining fields refine the defaults. Nothing
// may be changed after Run is called. There is currently no limit on
// simultaneous requests.
//
// Run also starts a background goroutine that verifies the checksums of
// stored bags, unless DisableFixity is set.
type RESTServer struct {
	// Port number to listen on. Defaults to 14000.
	PortNumber string
	PProfPort  string

	// BagStore holds the archived package bags. Run will panic if
	// BagStore is nil.
	BagStore store.Store

	// CacheDir is where staged uploads, cached resource map renderings,
	// and the embedded database are kept. It can be a directory path, a
	// "file:" path, or an "s3:" URL. If CacheDir is empty then uploads
	// and renderings are kept entirely in memory.
	CacheDir  string
	CacheSize int64 // in bytes. 0 disables the rendering cache

	// Pass in a dial command to use a MySQL server as a database.
	// Otherwise a lightweight internal database is used, and placed
	// inside the CacheDir directory. The special value "memory" for
	// CacheDir is not needed; an empty CacheDir keeps the database in
	// memory. e.g. "user:password@tcp(localhost:5555)/dbname" or just
	// "/dbname" if everything else can be the default. Can also use
	// domain sockets: "user@unix(/path/to/socket)/dbname"
	MySQL string

	// ResolveBase is the URI prefix member identifiers are resolved
	// against when building resource maps for packages that do not name
	// their own base.
	ResolveBase string

	// The fields after this point only need to be set in special
	// situations.

	// Stage keeps uploaded member content waiting for package
	// submission. If nil, content is staged inside the cache directory.
	Stage *stage.Store

	// MapCache keeps rendered resource maps. If nil, renderings are
	// cached inside the cache directory, up to CacheSize bytes.
	MapCache mapcache.Cache

	// Registry stores the manifest record for every submitted package.
	Registry RegistryDB

	// FixityDatabase stores the records tracking past and future
	// checksum verifications of stored bags.
	FixityDatabase FixityDB
	DisableFixity  bool

	// FixityInterval is how long after a verification the next one is
	// scheduled. Defaults to 180 days.
	FixityInterval time.Duration

	// FixityRate limits how quickly bags are read while verifying, in
	// MB/hour. 0 means no limit.
	FixityRate int64

	server     httpdown.Server // our listening socket, for Stop
	maps       singleflight.Group
	fixitystop chan struct{}  // closed to tell the fixity worker to exit
	fixitywg   sync.WaitGroup // waits for the fixity worker to exit
}

// Run finishes initializing the server and then blocks, listening for and
// handling HTTP requests.
func (s *RESTServer) Run() error {
	log.Printf("Parcel version %s starting", Version)
	log.Printf("CacheDir = %s", s.CacheDir)
	log.Printf("CacheSize = %d", s.CacheSize)

	if s.BagStore == nil {
		panic("Run called with a nil BagStore")
	}
	if s.ResolveBase == "" {
		s.ResolveBase = oremap.DefaultResolveBase
	}

	db := s.opendatabase()
	if s.Registry == nil {
		s.Registry = db
	}
	if !s.DisableFixity {
		if s.FixityDatabase == nil {
			s.FixityDatabase = db
		}
		if s.FixityInterval == 0 {
			s.FixityInterval = defaultFixityInterval
		}
		s.StartFixity()
	}

	if s.MapCache == nil {
		s.MapCache = s.newMapCache()
	}

	if s.Stage == nil {
		s.Stage = stage.New(s.getcachestore("upload"))
	}
	log.Println("Scanning upload queue")
	err := s.Stage.Load()
	if err != nil {
		log.Println("Scanning upload queue:", err)
		return err
	}

	if s.PProfPort != "" {
		log.Println("Starting pprof on port", s.PProfPort)
		go func() {
			log.Println(http.ListenAndServe(":"+s.PProfPort, nil))
		}()
	}

	if s.PortNumber == "" {
		s.PortNumber = "14000"
	}
	log.Println("Listening on port", s.PortNumber)
	down := httpdown.HTTP{}
	s.server, err = down.ListenAndServe(&http.Server{
		Addr:    ":" + s.PortNumber,
		Handler: s.Handler(),
	})
	if err != nil {
		log.Println(err)
		return err
	}
	return s.server.Wait()
}

// opendatabase connects to MySQL when a dial string was given, and
// otherwise to the embedded database, kept in the cache directory or in
// memory. It panics on failure since the server cannot run without a
// database.
func (s *RESTServer) opendatabase() Database {
	var db Database
	var err error
	if s.MySQL != "" {
		log.Println("Using MySQL")
		db, err = NewMysqlCache(s.MySQL)
	} else {
		path := "memory"
		if dir, ok := s.cachepath(); ok {
			path = filepath.Join(dir, "parcel.ql")
		}
		log.Println("Using embedded database at", path)
		db, err = NewQlCache(path)
	}
	if err != nil {
		panic(err)
	}
	return db
}

// newMapCache builds the resource map cache in the cache directory, sized
// to CacheSize. A zero CacheSize turns rendering caching off.
func (s *RESTServer) newMapCache() mapcache.Cache {
	if s.CacheSize == 0 {
		log.Println("Not caching resource maps")
		return mapcache.EmptyCache{}
	}
	c := mapcache.NewLRU(s.getcachestore("mapcache"), s.CacheSize)
	go c.Scan()
	return c
}

// Stop closes the listening socket and returns once every server goroutine
// has exited.
func (s *RESTServer) Stop() error {
	// the fixity worker first, then the open HTTP connections
	s.StopFixity()
	return s.server.Stop()
}

// Handler returns the handler serving all the routes. It is used by Run,
// and is exposed so a server can be embedded or tested without listening
// on a socket.
func (s *RESTServer) Handler() http.Handler {
	var routes = []struct {
		method  string
		route   string
		handler httprouter.Handle
	}{
		// packages
		{"GET", "/package", s.ListPackagesHandler},
		{"POST", "/package", s.SubmitPackageHandler},
		{"GET", "/package/:id", s.PackageHandler},
		{"DELETE", "/package/:id", s.DeletePackageHandler},
		{"GET", "/package/:id/resourcemap", s.ResourceMapHandler},
		{"GET", "/package/:id/bag", s.BagHandler},
		{"HEAD", "/package/:id/bag", s.BagHandler},
		{"GET", "/package/:id/member/*memberid", s.MemberHandler},
		{"HEAD", "/package/:id/member/*memberid", s.MemberHandler},

		// staged uploads
		{"GET", "/upload", s.ListFileHandler},
		{"POST", "/upload", s.UploadFileHandler},
		{"PUT", "/upload/:fileid", s.UploadFileHandler},
		{"GET", "/upload/:fileid", s.GetFileHandler},
		{"DELETE", "/upload/:fileid", s.DeleteFileHandler},
		{"GET", "/upload/:fileid/metadata", s.GetFileInfoHandler},
		{"PUT", "/upload/:fileid/metadata", s.SetFileInfoHandler},

		// fixity checking
		{"GET", "/fixity", s.GetFixityHandler},
		{"POST", "/fixity", s.PostFixityHandler},
		{"GET", "/fixity/:id", s.GetFixityIdHandler},
		{"DELETE", "/fixity/:id", s.DeleteFixityIdHandler},

		// everything else
		{"GET", "/formats", s.FormatsHandler},
		{"GET", "/", WelcomeHandler},
		{"GET", "/stats", NotImplementedHandler},
		{"GET", "/debug/vars", VarHandler},
	}

	r := httprouter.New()
	for _, route := range routes {
		r.Handle(route.method, route.route, logWrapper(route.handler))
	}
	return r
}

// VarHandler adapts the expvar handler to httprouter's signature, since
// the router otherwise hides the standard /debug/vars route.
func VarHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	expvar.Handler().ServeHTTP(w, r)
}

// NotImplementedHandler returns a 501 error.
func NotImplementedHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusNotImplemented)
	fmt.Fprintln(w, "Not Implemented")
}

// writeHTMLorJSON renders val as JSON when the request's Accept header
// asks for it, and through tmpl otherwise.
func writeHTMLorJSON(w http.ResponseWriter, r *http.Request, tmpl *template.Template, val interface{}) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(val)
		return
	}
	tmpl.Execute(w, val)
}

// logWrapper logs the request method and URL and then hands the request to
// the wrapped handler.
func logWrapper(handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		log.Println(r.Method, r.URL)
		handler(w, r, ps)
	}
}
