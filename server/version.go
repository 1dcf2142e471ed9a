package server

// Version is the version of the server. The main program may override it
// at build time.
var Version = "devel"
