package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	raven "github.com/getsentry/raven-go"

	"github.com/ndlib/parcel/server"
)

// Config holds the configuration for the parcel server. Give the values in
// a TOML file and pass the file name using --config-file. A few options can
// also be set on the command line, and those override the config file.
type Config struct {
	// StorageDir is where the archived bags are kept. It can be a plain
	// directory path, a "file:" path, or an "s3:" URL naming a bucket
	// and key prefix. Leave it empty to keep everything in memory, which
	// is only useful for testing.
	StorageDir string

	// CacheDir is where uploads are staged, rendered resource maps are
	// cached, and the embedded database lives. Same forms as StorageDir.
	CacheDir string

	// CacheSize is the maximum size of the resource map cache in MB.
	CacheSize int64

	PortNumber string
	PProfPort  string

	// Mysql gives the dial command for an external MySQL database. When
	// empty an embedded database is kept in CacheDir.
	Mysql string

	// ResolveBase is the URI prefix used to resolve member identifiers
	// when a package does not name its own base.
	ResolveBase string

	// FixityInterval is how long to wait between checksum verifications
	// of each bag, e.g. "4320h". Empty uses the server default.
	FixityInterval string

	// FixityRate limits how quickly bags are read during verification,
	// in MB/hour. 0 means no limit.
	FixityRate    int64
	DisableFixity bool

	// SentryDSN enables error reporting to a sentry server. The
	// SENTRY_DSN environment variable also works.
	SentryDSN string

	// LogFile appends log output to the given file instead of stdout.
	LogFile string
}

var (
	configFile  = flag.String("config-file", "", "location of the configuration file")
	storageDir  = flag.String("storage", "", "location of the bag storage")
	portNumber  = flag.String("port", "", "port number to listen on")
	showVersion = flag.Bool("version", false, "display the version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("parcel version", server.Version)
		return
	}

	var settings Config
	if *configFile != "" {
		log.Println("Reading config file", *configFile)
		_, err := toml.DecodeFile(*configFile, &settings)
		if err != nil {
			log.Fatalln("Error reading config file:", err)
		}
	}
	// command line overrides the config file
	if *storageDir != "" {
		settings.StorageDir = *storageDir
	}
	if *portNumber != "" {
		settings.PortNumber = *portNumber
	}

	if settings.LogFile != "" {
		f, err := os.OpenFile(settings.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalln("Error opening log file:", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	if settings.SentryDSN != "" {
		raven.SetDSN(settings.SentryDSN)
	}
	raven.SetRelease(server.Version)

	var interval time.Duration
	if settings.FixityInterval != "" {
		var err error
		interval, err = time.ParseDuration(settings.FixityInterval)
		if err != nil {
			log.Fatalln("Error parsing FixityInterval:", err)
		}
	}

	if settings.StorageDir == "" {
		log.Println("No storage location given. Bags will be kept in memory.")
	}
	bags := parselocation(settings.StorageDir, "")
	if bags == nil {
		log.Fatalln("Could not set up the bag storage", settings.StorageDir)
	}

	srv := &server.RESTServer{
		PortNumber:     settings.PortNumber,
		PProfPort:      settings.PProfPort,
		BagStore:       bags,
		CacheDir:       settings.CacheDir,
		CacheSize:      settings.CacheSize * 1000000,
		MySQL:          settings.Mysql,
		ResolveBase:    settings.ResolveBase,
		FixityInterval: interval,
		FixityRate:     settings.FixityRate,
		DisableFixity:  settings.DisableFixity,
	}

	// set up signal handlers
	sig := make(chan os.Signal, 5)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Println("---- Received signal", s)
		signal.Stop(sig)
		srv.Stop()
	}()

	err := srv.Run()
	if err != nil {
		raven.CaptureErrorAndWait(err, nil)
		log.Fatalln(err)
	}
}
