package util

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

const hashinput = "hello1 hello2 hello3 hello4 hello5abcdefghijklmnopqrstuvwxyz0123456789"

func TestHashWriter(t *testing.T) {
	goalMD5, _ := hex.DecodeString("0101fc798d94a730b0f0bf1bd2cc1959")
	goalSHA256, _ := hex.DecodeString("fef15edd82b33633582c723562d192fec2d2003df12d4aeac89df17c279a1658")
	var w = new(bytes.Buffer)
	hw := NewHashWriter(w)
	hw.Write([]byte(hashinput))
	if w.String() != hashinput {
		t.Errorf("Received %s, expected %s", w.String(), hashinput)
	}
	h, ok := hw.CheckMD5(goalMD5)
	if !ok {
		t.Fatalf("Got %v, expected %v", h, goalMD5)
	}
	h, ok = hw.CheckSHA256(goalSHA256)
	if !ok {
		t.Fatalf("Got %v, expected %v", h, goalSHA256)
	}
	if hw.HexMD5() != "0101fc798d94a730b0f0bf1bd2cc1959" {
		t.Errorf("Received %s, expected 0101fc798d94a730b0f0bf1bd2cc1959", hw.HexMD5())
	}
	if hw.HexSHA256() != "fef15edd82b33633582c723562d192fec2d2003df12d4aeac89df17c279a1658" {
		t.Errorf("Received %s, expected fef15edd82b33633582c723562d192fec2d2003df12d4aeac89df17c279a1658", hw.HexSHA256())
	}
}

func TestHashWriterEmptyGoal(t *testing.T) {
	hw := NewHashWriterPlain()
	hw.Write([]byte(hashinput))
	if _, ok := hw.CheckMD5(nil); !ok {
		t.Error("empty goal should match")
	}
	if _, ok := hw.CheckMD5([]byte{0}); ok {
		t.Error("wrong goal should not match")
	}
}

func TestVerifyStreamHash(t *testing.T) {
	goalMD5, _ := hex.DecodeString("0101fc798d94a730b0f0bf1bd2cc1959")
	goalSHA256, _ := hex.DecodeString("fef15edd82b33633582c723562d192fec2d2003df12d4aeac89df17c279a1658")
	var table = []struct {
		name   string
		md5    []byte
		sha256 []byte
		ok     bool
	}{
		{"both match", goalMD5, goalSHA256, true},
		{"md5 only", goalMD5, nil, true},
		{"sha256 only", nil, goalSHA256, true},
		{"neither given", nil, nil, true},
		{"md5 mismatch", []byte{1, 2, 3}, goalSHA256, false},
		{"sha256 mismatch", goalMD5, []byte{1, 2, 3}, false},
	}
	for _, test := range table {
		ok, err := VerifyStreamHash(strings.NewReader(hashinput), test.md5, test.sha256)
		if err != nil {
			t.Fatal(test.name, err)
		}
		if ok != test.ok {
			t.Errorf("%s: received %v, expected %v", test.name, ok, test.ok)
		}
	}
}
