// Package geom holds the planar pose type shared by the controller and its
// estimators, together with the angle helpers used to compare headings.
package geom

import (
	"fmt"
	"math"
)

// Pose2D is a position in metres and a heading in radians.
// Headings produced by this package are wrapped to (-π, π].
type Pose2D struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

func (p Pose2D) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f rad)", p.X, p.Y, p.Heading)
}

// DistanceTo is the euclidean distance between the two positions.
func (p Pose2D) DistanceTo(q Pose2D) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// BearingTo is the absolute heading from p towards q.
func (p Pose2D) BearingTo(q Pose2D) float64 {
	return math.Atan2(q.Y-p.Y, q.X-p.X)
}

// HeadingError is the signed rotation that turns p's heading onto q's heading.
func (p Pose2D) HeadingError(q Pose2D) float64 {
	return ShortestAngularDistance(p.Heading, q.Heading)
}

// BearingError is the signed rotation that points p's heading at q's position.
func (p Pose2D) BearingError(q Pose2D) float64 {
	return ShortestAngularDistance(p.Heading, p.BearingTo(q))
}

// Offset returns the pose reached by travelling distance metres from p along
// heading. The returned pose faces heading.
func (p Pose2D) Offset(heading, distance float64) Pose2D {
	return Pose2D{
		X:       p.X + distance*math.Cos(heading),
		Y:       p.Y + distance*math.Sin(heading),
		Heading: NormalizeAngle(heading),
	}
}

// Turned is p rotated in place by delta radians.
func (p Pose2D) Turned(delta float64) Pose2D {
	p.Heading = NormalizeAngle(p.Heading + delta)
	return p
}

// NormalizeAngle wraps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// NormalizeAnglePositive wraps a into [0, 2π).
func NormalizeAnglePositive(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// ShortestAngularDistance is the signed smallest rotation taking from onto to.
func ShortestAngularDistance(from, to float64) float64 {
	return NormalizeAngle(to - from)
}

// Degrees converts degrees to radians.
func Degrees(d float64) float64 {
	return d * math.Pi / 180
}
