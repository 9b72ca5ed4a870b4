// Package testutil holds helpers shared by package tests.
package testutil

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// CassetteDir is where cassettes live, relative to the package under test.
var CassetteDir = filepath.Join("testdata", "fixtures")

// ReplayClient returns an HTTP client that answers from the named cassette.
// Set VCR_MODE=record to hit the real service and rewrite the cassette.
// Interactions match on method and URL; bodies carry request ids that
// differ on every run.
func ReplayClient(t *testing.T, cassetteName string) *http.Client {
	t.Helper()

	mode := recorder.ModeReplaying
	if os.Getenv("VCR_MODE") == "record" {
		mode = recorder.ModeRecording
	}

	r, err := recorder.NewAsMode(filepath.Join(CassetteDir, cassetteName), mode, nil)
	if err != nil {
		t.Fatalf("failed to load cassette %s: %v", cassetteName, err)
	}

	r.SetMatcher(func(req *http.Request, i cassette.Request) bool {
		return req.Method == i.Method && req.URL.String() == i.URL
	})

	t.Cleanup(func() {
		if err := r.Stop(); err != nil {
			t.Errorf("failed to stop recorder: %v", err)
		}
	})

	return &http.Client{Transport: r}
}
