package testutil

import (
	"testing"

	"github.com/robert-malhotra/s1bursts/internal/safe"
)

// DatapoolURL is the base URL scenes are located under in tests.
const DatapoolURL = "https://datapool.asf.alaska.edu"

// Product parses the scene as if it were read from its datapool URL.
func (s Scene) Product(t testing.TB) *safe.Product {
	t.Helper()
	p, err := safe.Parse(s.URL(DatapoolURL), s.Manifest(), s.Annotations())
	if err != nil {
		t.Fatalf("parse scene %s: %v", s.Name, err)
	}
	return p
}

// Swath parses the scene and returns swath n of a polarization.
func (s Scene) Swath(t testing.TB, pol string, n int) *safe.Swath {
	t.Helper()
	sw, err := s.Product(t).Swath(pol, n)
	if err != nil {
		t.Fatalf("swath %s IW%d: %v", pol, n, err)
	}
	return sw
}
