package projection

import "math"

// Perspective builds a projection matrix in the simulator's camera
// convention: the camera looks along local +X, image right is local +Y and
// image down is local +Z. w is the depth along +X, so points in front of the
// camera have positive w.
//
// hfovDeg is the horizontal field of view. near only feeds the depth row,
// which ProjectPoint does not use for pixel placement.
func Perspective(hfovDeg float64, width, height int, near float64) Matrix4 {
	fx := 1.0 / math.Tan(hfovDeg*math.Pi/360.0)
	fy := fx
	if height > 0 {
		fy = fx * float64(width) / float64(height)
	}
	return Matrix4{
		0, -fx, 0, 0,
		0, 0, fy, 0,
		0, 0, 0, near,
		1, 0, 0, 0,
	}
}
