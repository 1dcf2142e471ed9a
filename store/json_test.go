package store

import (
	"testing"
)

type jtest struct {
	Name string
	Age  int
}

func TestJSON(t *testing.T) {
	memory := NewMemory()
	js := NewJSON(memory)

	first := jtest{Name: "Petra", Age: 30}
	err := js.Save("petra", &first)
	if err != nil {
		t.Fatalf("Got err = %s, expected nil", err.Error())
	}
	second := new(jtest)
	err = js.Open("petra", &second)
	if err != nil {
		t.Fatalf("Got err = %s, expected nil", err.Error())
	}
	if second.Name != "Petra" || second.Age != 30 {
		t.Fatalf("Got %#v, expected %#v", second, first)
	}

	// saving again replaces the previous value
	first.Age = 31
	err = js.Save("petra", &first)
	if err != nil {
		t.Fatalf("Got err = %s, expected nil", err.Error())
	}
	third := new(jtest)
	err = js.Open("petra", &third)
	if err != nil {
		t.Fatalf("Got err = %s, expected nil", err.Error())
	}
	if third.Age != 31 {
		t.Fatalf("Got age %d, expected 31", third.Age)
	}
}
