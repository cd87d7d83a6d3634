package tabula

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"testing"
)

func tcheck(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

func tneed(t *testing.T, err error, expErr error, msg string) {
	t.Helper()
	if err == nil || !errors.Is(err, expErr) {
		t.Fatalf("%s: got %q, expected error %q", msg, fmt.Sprintf("%v", err), expErr.Error())
	}
}

func tcompare(t *testing.T, err error, got, exp any, msg string) {
	t.Helper()
	tcheck(t, err, msg)
	if !reflect.DeepEqual(got, exp) {
		t.Fatalf("%s: got:\n%v\nexpected:\n%v", msg, got, exp)
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

// run executes the suite twice, once with sanityChecks off and once with it
// on, so the expensive self-consistency checks run without paying for them
// on every pass.
func run(m *testing.M) int {
	sanityChecks = false
	if e := m.Run(); e != 0 {
		return e
	}
	sanityChecks = true
	return m.Run()
}
