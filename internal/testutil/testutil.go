// Package testutil holds assertion helpers and fixtures shared by the
// package tests.
package testutil

import (
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/forager/internal/geom"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// PoseNear reports whether two poses agree within tol metres and tol
// radians of wrapped heading.
func PoseNear(got, want geom.Pose2D, tol float64) bool {
	return math.Abs(got.X-want.X) <= tol &&
		math.Abs(got.Y-want.Y) <= tol &&
		math.Abs(geom.ShortestAngularDistance(got.Heading, want.Heading)) <= tol
}

// AssertPoseNear fails the test unless PoseNear(got, want, tol).
func AssertPoseNear(t testing.TB, got, want geom.Pose2D, tol float64) {
	t.Helper()
	if !PoseNear(got, want, tol) {
		t.Errorf("pose = %s, want %s (tol %g)", got, want, tol)
	}
}

// LocalRequest builds a request from a loopback address so it passes
// tsweb's debug access check.
func LocalRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}
