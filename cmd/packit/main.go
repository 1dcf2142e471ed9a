package main

// The packit tool assembles data packages and talks to a parcel server.
// It is meant to be scriptable for batch ingest, and to be a convenient
// way to poke at a server by hand.

import (
	"flag"
	"fmt"
)

// various command line flags, with default values

var (
	server       = flag.String("server", "http://localhost:14000", "parcel server to use")
	fileroot     = flag.String("root", ".", "directory downloaded files are saved under")
	format       = flag.String("format", "", "resource map serialization syntax")
	mimetype     = flag.String("mimetype", "application/octet-stream", "format id given to uploads")
	getbag       = flag.Bool("bag", false, "download the archived bag instead of member files")
	schedule     = flag.Bool("schedule", false, "schedule a new fixity check")
	numuploaders = flag.Int("ul", 2, "number of simultaneous uploads")
	usage        = `
packit <command> <command arguments>

Commands working on local files:

    assemble <package.toml> <bagfile.zip>
    resmap <package.toml>
    verify <bagfile.zip>

Commands talking to a parcel server:

    ls
    info <package id>
    get <package id> [<member id> ...]
    resmap <package id>
    upload <file> [<file> ...]
    submit <package.toml>
    fixity <package id>

`
)

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Print(usage)
		return
	}

	switch args[0] {
	case "assemble":
		if len(args) != 3 {
			fmt.Println("Usage: packit assemble <package.toml> <bagfile.zip>")
			return
		}
		doassemble(args[1], args[2])
	case "resmap":
		if len(args) != 2 {
			fmt.Println("Usage: packit <flags> resmap <package.toml or package id>")
			return
		}
		doresmap(args[1])
	case "verify":
		if len(args) != 2 {
			fmt.Println("Usage: packit verify <bagfile.zip>")
			return
		}
		doverify(args[1])
	case "ls":
		dols()
	case "info":
		if len(args) != 2 {
			fmt.Println("Usage: packit <flags> info <package id>")
			return
		}
		doinfo(args[1])
	case "get":
		if len(args) < 2 {
			fmt.Println("Usage: packit <flags> get <package id> [<member id> ...]")
			return
		}
		doget(args[1], args[2:])
	case "upload":
		if len(args) < 2 {
			fmt.Println("Usage: packit <flags> upload <file> [<file> ...]")
			return
		}
		doupload(args[1:])
	case "submit":
		if len(args) != 2 {
			fmt.Println("Usage: packit <flags> submit <package.toml>")
			return
		}
		dosubmit(args[1])
	case "fixity":
		if len(args) != 2 {
			fmt.Println("Usage: packit <flags> fixity <package id>")
			return
		}
		dofixity(args[1])
	default:
		fmt.Print(usage)
	}
}
