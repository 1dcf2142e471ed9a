package util

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// A HashWriter computes the MD5 and SHA256 hashes of everything written
// through it, optionally passing the bytes along to an underlying writer.
type HashWriter struct {
	io.Writer // the multiwriter feeding the hashes and the output
	md5       hash.Hash
	sha256    hash.Hash
}

// NewHashWriterPlain returns a HashWriter that only hashes. The data is
// written nowhere.
func NewHashWriterPlain() *HashWriter {
	hw := &HashWriter{md5: md5.New(), sha256: sha256.New()}
	hw.Writer = io.MultiWriter(hw.md5, hw.sha256)
	return hw
}

// NewHashWriter returns a HashWriter teeing its writes into w.
func NewHashWriter(w io.Writer) *HashWriter {
	hw := NewHashWriterPlain()
	hw.Writer = io.MultiWriter(w, hw.Writer)
	return hw
}

// CheckMD5 returns the MD5 hash of the bytes written so far, and whether
// it matches goal. An empty goal matches anything.
func (hw *HashWriter) CheckMD5(goal []byte) ([]byte, bool) {
	return checkhash(hw.md5, goal)
}

// CheckSHA256 is CheckMD5 for the SHA256 hash.
func (hw *HashWriter) CheckSHA256(goal []byte) ([]byte, bool) {
	return checkhash(hw.sha256, goal)
}

func checkhash(h hash.Hash, goal []byte) ([]byte, bool) {
	computed := h.Sum(nil)
	return computed, len(goal) == 0 || bytes.Equal(goal, computed)
}

// HexMD5 returns the MD5 hash of everything written so far, in hex.
func (hw *HashWriter) HexMD5() string {
	return hex.EncodeToString(hw.md5.Sum(nil))
}

// HexSHA256 returns the SHA256 hash of everything written so far, in hex.
func (hw *HashWriter) HexSHA256() string {
	return hex.EncodeToString(hw.sha256.Sum(nil))
}

// VerifyStreamHash reads r to the end and compares its hashes against the
// given md5 and sha256 values. A nil or empty slice skips that hash. The
// reader is not closed.
func VerifyStreamHash(r io.Reader, md5, sha256 []byte) (bool, error) {
	if len(md5) == 0 && len(sha256) == 0 {
		return true, nil
	}
	hw := NewHashWriterPlain()
	_, err := io.Copy(hw, r)
	_, md5ok := hw.CheckMD5(md5)
	_, sha256ok := hw.CheckSHA256(sha256)
	return md5ok && sha256ok, err
}
