package checksum

import "testing"

func TestSum(t *testing.T) {
	// SHA-256 of the empty string.
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
}

func TestJSON(t *testing.T) {
	type pair struct {
		A string
		B []string
	}
	a, err := JSON(pair{A: "x", B: []string{"1"}})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := JSON(pair{A: "x", B: []string{"1"}})
	c, _ := JSON(pair{A: "y", B: []string{"1"}})
	if a != b {
		t.Error("equal values should give equal digests")
	}
	if a == c {
		t.Error("different values should give different digests")
	}
	if _, err := JSON(make(chan int)); err == nil {
		t.Error("expected error for unencodable value")
	}
}
