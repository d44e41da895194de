package testutil

import (
	"math"
	"net/http"
	"testing"

	"github.com/banshee-data/forager/internal/geom"
)

func TestPoseNear(t *testing.T) {
	tests := []struct {
		name      string
		got, want geom.Pose2D
		tol       float64
		near      bool
	}{
		{"identical", geom.Pose2D{X: 1, Y: 2, Heading: 0.5}, geom.Pose2D{X: 1, Y: 2, Heading: 0.5}, 1e-9, true},
		{"within tolerance", geom.Pose2D{X: 1.001}, geom.Pose2D{X: 1}, 0.01, true},
		{"too far", geom.Pose2D{Y: 0.5}, geom.Pose2D{}, 0.01, false},
		{"heading wraps", geom.Pose2D{Heading: math.Pi - 0.001}, geom.Pose2D{Heading: -math.Pi + 0.001}, 0.01, true},
		{"heading off", geom.Pose2D{Heading: 1}, geom.Pose2D{}, 0.1, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := PoseNear(tc.got, tc.want, tc.tol); got != tc.near {
				t.Errorf("PoseNear = %v, want %v", got, tc.near)
			}
		})
	}
}

func TestLocalRequest(t *testing.T) {
	req := LocalRequest(http.MethodGet, "/debug/", nil)
	if req.RemoteAddr != "127.0.0.1:12345" {
		t.Errorf("RemoteAddr = %q", req.RemoteAddr)
	}
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
}
