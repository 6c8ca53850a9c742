// Package projection maps world points into camera pixel space using the
// camera pose and the renderer's 4x4 perspective projection matrix.
package projection

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/thermalsim/internal/geom"
	"gonum.org/v1/gonum/mat"
)

// ErrOutOfFrame is returned when a point does not land inside the image.
// Callers must treat it as "not visible" and never clip.
var ErrOutOfFrame = errors.New("point is outside the camera frame")

// ErrInvalidImageSize is returned for non-positive image dimensions.
var ErrInvalidImageSize = errors.New("image dimensions must be positive")

// wEpsilon is the magnitude below which the homogeneous w is treated as zero.
const wEpsilon = 1e-12

// Matrix4 is a 4x4 matrix stored row-major: m00,m01,m02,m03, m10,...
type Matrix4 [16]float64

// IsZero reports whether every element is zero, which is how the simulator
// reports a missing projection matrix.
func (m Matrix4) IsZero() bool {
	return m == Matrix4{}
}

// Dense returns a gonum view of the matrix.
func (m Matrix4) Dense() *mat.Dense {
	data := make([]float64, 16)
	copy(data, m[:])
	return mat.NewDense(4, 4, data)
}

// CameraFrame is the camera state needed to project a point. It is always
// taken from the same capture the projection is reported against.
type CameraFrame struct {
	Position    geom.Vector3    `json:"position"`
	Orientation geom.Quaternion `json:"orientation"`
	Projection  Matrix4         `json:"projection"`
	ImageWidth  int             `json:"image_width"`
	ImageHeight int             `json:"image_height"`
}

// Pixel is a projected image coordinate with the origin at the upper-left.
type Pixel struct {
	Col  float64 `json:"col"`
	Row  float64 `json:"row"`
	NDCX float64 `json:"ndc_x"`
	NDCY float64 `json:"ndc_y"`
}

// ProjectPoint projects a world point into the camera's image.
//
// The point is moved into the camera's local frame (subtract position, apply
// the transpose of Rz·Ry·Rx), homogenised, multiplied by the projection
// matrix and divided by w. NDC x maps to width*(1-x)/2 and NDC y to
// height*(1+y)/2 because the renderer's screen lies in the y,-z plane.
//
// A zero or negative w, non-finite inputs or NDC outside [-1,1] yield
// ErrOutOfFrame. The projection matrix must give w > 0 for points in front
// of the camera (+X forward, as Perspective builds it); a matrix with the
// opposite sign convention reports every visible point as out of frame.
func ProjectPoint(p geom.Vector3, cam CameraFrame) (Pixel, error) {
	if cam.ImageWidth <= 0 || cam.ImageHeight <= 0 {
		return Pixel{}, fmt.Errorf("%w: got %dx%d", ErrInvalidImageSize, cam.ImageWidth, cam.ImageHeight)
	}
	if !p.IsFinite() {
		return Pixel{}, fmt.Errorf("%w: non-finite world point", ErrOutOfFrame)
	}
	if !cam.Position.IsFinite() || !cam.Orientation.IsFinite() {
		return Pixel{}, fmt.Errorf("%w: non-finite camera pose", ErrOutOfFrame)
	}

	rot := geom.RotationMatrix(geom.ToEuler(cam.Orientation))

	d := p.Sub(cam.Position)
	var local mat.VecDense
	local.MulVec(rot.T(), mat.NewVecDense(3, []float64{d.X, d.Y, d.Z}))

	xyzw := mat.NewVecDense(4, []float64{local.AtVec(0), local.AtVec(1), local.AtVec(2), 1})
	var clip mat.VecDense
	clip.MulVec(cam.Projection.Dense(), xyzw)

	w := clip.AtVec(3)
	if math.IsNaN(w) || math.Abs(w) < wEpsilon {
		return Pixel{}, fmt.Errorf("%w: homogeneous w is zero", ErrOutOfFrame)
	}
	// Negative w is behind the camera; the divide would mirror it into view.
	if w < 0 {
		return Pixel{}, fmt.Errorf("%w: point is behind the camera", ErrOutOfFrame)
	}

	ndcX := clip.AtVec(0) / w
	ndcY := clip.AtVec(1) / w
	if math.IsNaN(ndcX) || math.IsNaN(ndcY) || math.IsInf(ndcX, 0) || math.IsInf(ndcY, 0) {
		return Pixel{}, fmt.Errorf("%w: non-finite normalised coordinates", ErrOutOfFrame)
	}
	if ndcX < -1 || ndcX > 1 || ndcY < -1 || ndcY > 1 {
		return Pixel{}, fmt.Errorf("%w: ndc (%.3f, %.3f)", ErrOutOfFrame, ndcX, ndcY)
	}

	return Pixel{
		Col:  float64(cam.ImageWidth) * (1 - ndcX) / 2,
		Row:  float64(cam.ImageHeight) * (1 + ndcY) / 2,
		NDCX: ndcX,
		NDCY: ndcY,
	}, nil
}

// InFrame is a convenience wrapper that reports visibility without the
// reason.
func InFrame(p geom.Vector3, cam CameraFrame) (Pixel, bool) {
	px, err := ProjectPoint(p, cam)
	return px, err == nil
}
