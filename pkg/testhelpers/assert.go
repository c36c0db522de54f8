package testhelpers

import (
	"reflect"
	"testing"
)

// AssertNoError fails the test immediately if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
}

// AssertEqual fails the test if expected and actual are not deeply equal.
func AssertEqual(t *testing.T, expected, actual any) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Errorf("expected %v, got %v", expected, actual)
	}
}

// AssertNotNil fails the test if v is nil, including typed nil pointers.
func AssertNotNil(t *testing.T, v any) {
	t.Helper()
	if v == nil {
		t.Fatal("expected non-nil value")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		if rv.IsNil() {
			t.Fatal("expected non-nil value")
		}
	}
}

// AssertTrue fails the test if cond is false.
func AssertTrue(t *testing.T, cond bool, msg string) {
	t.Helper()
	if !cond {
		t.Error(msg)
	}
}

// CommandAnnotationTest describes one expected annotation of a cobra command.
type CommandAnnotationTest struct {
	Key      string
	Expected string
}

// TestCommandAnnotations checks the annotations of a cobra command.
func TestCommandAnnotations(t *testing.T, annotations map[string]string, tests []CommandAnnotationTest) {
	t.Helper()
	for _, tt := range tests {
		if got := annotations[tt.Key]; got != tt.Expected {
			t.Errorf("annotation %q: expected %q, got %q", tt.Key, tt.Expected, got)
		}
	}
}
