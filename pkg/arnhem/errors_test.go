package arnhem

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorKindsShareRoot(t *testing.T) {
	errs := []error{
		&Error{Msg: "x"},
		&ConnectionError{Msg: "x"},
		&NoResultsError{},
		&MappingError{Key: "k"},
	}
	for _, err := range errs {
		if !errors.Is(err, ErrClient) {
			t.Fatalf("%T does not derive from ErrClient", err)
		}
	}
	if errors.Is(&NoResultsError{}, ErrConnection) {
		t.Fatalf("no results error must not match ErrConnection")
	}
}

func TestErrorSummaryHTMLTitle(t *testing.T) {
	err := &Error{
		Msg:         msgContentType,
		ContentType: "text/html; charset=utf-8",
		Response:    `<html><head><title>Service Unavailable</title></head><body><h1>Oops</h1></body></html>`,
	}
	if got := err.Summary(); got != "Service Unavailable" {
		t.Fatalf("Summary = %q", got)
	}
}

func TestErrorSummaryTruncatesText(t *testing.T) {
	err := &Error{ContentType: "text/plain", Response: strings.Repeat("a", summaryMaxLen+10)}
	got := err.Summary()
	if !strings.HasSuffix(got, "...") || len(got) != summaryMaxLen+3 {
		t.Fatalf("unexpected summary %q", got)
	}
	if (&Error{}).Summary() != "<empty>" {
		t.Fatalf("expected empty marker")
	}
}

func TestErrorMessageIncludesContentType(t *testing.T) {
	err := &Error{Msg: msgContentType, ContentType: "text/plain"}
	if !strings.Contains(err.Error(), `"text/plain"`) {
		t.Fatalf("Error() = %q", err.Error())
	}
}
