package clientapi

import (
	"errors"
	"net/http"
	"time"
)

// A Connection represents a connection with a parcel server.
// It can be shared between multiple goroutines.
type Connection struct {
	// The parcel server this connection is to
	HostURL string

	client *http.Client
}

// Exported errors
var (
	ErrNotFound         = errors.New("Not Found in Parcel")
	ErrExists           = errors.New("Already Exists in Parcel")
	ErrChecksumMismatch = errors.New("Checksum mismatch")
	ErrUnexpectedResp   = errors.New("Unexpected Response Code")
)

// do performs an http request using our client with a timeout. The
// timeout is arbitrary, and is just there so we don't hang indefinitely
// should the server never close the connection.
func (c *Connection) do(req *http.Request) (*http.Response, error) {
	if c.client == nil {
		c.client = &http.Client{
			Timeout: 10 * time.Minute, // arbitrary
		}
	}
	return c.client.Do(req)
}
