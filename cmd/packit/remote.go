package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/ndlib/parcel/clientapi"
	"github.com/ndlib/parcel/pack"
	"github.com/ndlib/parcel/util"
)

// connection returns a Connection to the server named on the command line.
// A bare host:port is taken to be http.
func connection() *clientapi.Connection {
	host := *server
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return &clientapi.Connection{HostURL: host}
}

func dols() {
	c := connection()
	ids, err := c.ListPackages()
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}

func doinfo(id string) {
	c := connection()
	info, err := c.PackageInfo(id)
	switch {
	case err == clientapi.ErrNotFound:
		fmt.Printf("Package %s was not found on server %s\n", id, *server)
		return
	case err != nil:
		fmt.Println(err)
		return
	}
	pid, _ := info.GetString("ID")
	base, _ := info.GetString("Base")
	fmt.Println("Package:", pid)
	if base != "" {
		fmt.Println("Base:", base)
	}
	members, _ := info.GetObjectArray("Members")
	w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', 0)
	fmt.Fprintf(w, "Identifier\tFormat\tSize\tChecksum\n")
	for _, m := range members {
		ident, _ := m.GetString("Identifier")
		formatID, _ := m.GetString("FormatID")
		size, _ := m.GetInt64("Size")
		alg, _ := m.GetString("ChecksumAlgorithm")
		sum, _ := m.GetString("Checksum")
		fmt.Fprintf(w, "%s\t%s\t%d\t%s %s\n", ident, formatID, size, alg, sum)
	}
	w.Flush()
	relations, _ := info.GetObjectArray("Relations")
	for _, r := range relations {
		sub, _ := r.GetString("Subject")
		pred, _ := r.GetString("Predicate")
		obj, _ := r.GetString("Object")
		fmt.Println(sub, "--", pred, "--", obj)
	}
}

// doget downloads member files from a package into a directory named
// after the package, or the whole archived bag when -bag is given.
func doget(pkg string, members []string) {
	c := connection()
	if *getbag {
		target := filepath.Join(*fileroot, pack.PayloadName(pkg)+".zip")
		f, err := os.Create(target)
		if err != nil {
			fmt.Println(err)
			return
		}
		err = c.DownloadBag(f, pkg)
		f.Close()
		if err != nil {
			os.Remove(target)
			fmt.Println(err)
			return
		}
		fmt.Println(target)
		return
	}
	// with no members named, download the package's whole membership
	if len(members) == 0 {
		info, err := c.PackageInfo(pkg)
		switch {
		case err == clientapi.ErrNotFound:
			fmt.Printf("Package %s was not found on server %s\n", pkg, *server)
			return
		case err != nil:
			fmt.Println(err)
			return
		}
		list, _ := info.GetObjectArray("Members")
		for _, m := range list {
			id, merr := m.GetString("Identifier")
			if merr == nil {
				members = append(members, id)
			}
		}
	}
	dir := filepath.Join(*fileroot, pack.PayloadName(pkg))
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, member := range members {
		target := filepath.Join(dir, pack.PayloadName(member))
		f, err := os.Create(target)
		if err != nil {
			fmt.Println(err)
			return
		}
		err = c.DownloadMember(f, pkg, member)
		f.Close()
		if err != nil {
			os.Remove(target)
			fmt.Println(member, err)
			continue
		}
		fmt.Println(target)
	}
}

// doresmap prints a resource map on stdout. The argument may be a local
// package description file or the identifier of a package on the server.
func doresmap(target string) {
	if _, err := os.Stat(target); err == nil {
		p, err := loadPackage(target)
		if err != nil {
			fmt.Println(err)
			return
		}
		err = p.WriteResourceMap(os.Stdout, *format)
		if err != nil {
			fmt.Println(err)
		}
		return
	}
	c := connection()
	err := c.DownloadResourceMap(os.Stdout, target, *format)
	switch {
	case err == clientapi.ErrNotFound:
		fmt.Printf("Package %s was not found on server %s\n", target, *server)
	case err != nil:
		fmt.Println(err)
	}
}

// doupload stages files on the server without submitting a package. Each
// file is labeled with its base name and the -mimetype flag.
func doupload(files []string) {
	c := connection()
	gate := util.NewGate(*numuploaders)
	var wg sync.WaitGroup
	for _, name := range files {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			gate.Enter()
			defer gate.Leave()
			obj, err := pack.NewObjectFromFile(filepath.Base(name), *mimetype, name)
			if err != nil {
				fmt.Printf("%s: %s\n", name, err.Error())
				return
			}
			id, err := uploadobject(c, obj)
			if err != nil {
				fmt.Printf("%s: %s\n", name, err.Error())
				return
			}
			fmt.Printf("%s staged as %s\n", name, id)
		}(name)
	}
	wg.Wait()
}

// uploadobject stages one object's content on the server and labels the
// staged entry with the object's system metadata. Returns the upload id.
func uploadobject(c *clientapi.Connection, obj *pack.DataObject) (string, error) {
	rc, err := obj.Open()
	if err != nil {
		return "", err
	}
	id, err := c.Upload("", rc, obj.MD5)
	rc.Close()
	if err != nil {
		return "", err
	}
	err = c.SetUploadMeta(id, obj.SystemMetadata)
	if err != nil {
		return "", err
	}
	return id, nil
}

// dosubmit stages every member of the described package and then submits
// the package manifest. Staged content is left on the server if anything
// goes wrong, and is matched up again on the next try.
func dosubmit(path string) {
	p, err := loadPackage(path)
	if err != nil {
		fmt.Println(err)
		return
	}
	c := connection()
	members := p.Members()

	gate := util.NewGate(*numuploaders)
	var wg sync.WaitGroup
	errs := make([]error, len(members))
	for i, obj := range members {
		wg.Add(1)
		go func(i int, obj *pack.DataObject) {
			defer wg.Done()
			gate.Enter()
			defer gate.Leave()
			_, errs[i] = uploadobject(c, obj)
		}(i, obj)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			fmt.Printf("%s: %s\n", members[i].Identifier, err.Error())
			return
		}
	}

	loc, err := c.Submit(p)
	switch {
	case err == clientapi.ErrExists:
		fmt.Printf("Package %s is already on server %s\n", p.ID(), *server)
	case err != nil:
		fmt.Println(err)
	default:
		fmt.Println("created", loc)
	}
}

// dofixity lists the fixity records for a package, or schedules a new
// check when -schedule is given.
func dofixity(pkg string) {
	c := connection()
	if *schedule {
		loc, err := c.ScheduleFixity(pkg)
		switch {
		case err == clientapi.ErrNotFound:
			fmt.Printf("Package %s was not found on server %s\n", pkg, *server)
		case err != nil:
			fmt.Println(err)
		default:
			fmt.Println("scheduled", loc)
		}
		return
	}
	records, err := c.FixityRecords(pkg, "")
	if err != nil {
		fmt.Println(err)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', 0)
	fmt.Fprintf(w, "ID\tScheduled\tStatus\tNotes\n")
	for _, rec := range records {
		id, _ := rec.GetInt64("ID")
		when, _ := rec.GetString("ScheduledTime")
		status, _ := rec.GetString("Status")
		notes, _ := rec.GetString("Notes")
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", id, when, status, notes)
	}
	w.Flush()
}
