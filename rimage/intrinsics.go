package rimage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/depthvision/bodyparts/pointcloud"
)

// PinholeCameraIntrinsics holds the parameters of the depth sensor's
// perspective projection.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the intrinsics fields make a usable projection.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return errors.New("intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return errors.Errorf("invalid intrinsics size (%d, %d)", params.Width, params.Height)
	}
	if params.Fx <= 0 || params.Fy <= 0 {
		return errors.Errorf("invalid focal lengths (%f, %f)", params.Fx, params.Fy)
	}
	if params.Ppx < 0 || params.Ppy < 0 {
		return errors.Errorf("invalid principal point (%f, %f)", params.Ppx, params.Ppy)
	}
	return nil
}

// NewPinholeCameraIntrinsicsFromJSONFile reads intrinsics from a JSON file.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (params *PinholeCameraIntrinsics, err error) {
	f, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening intrinsics file")
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "error reading intrinsics file")
	}
	params = &PinholeCameraIntrinsics{}
	if err = json.Unmarshal(data, params); err != nil {
		return nil, errors.Wrap(err, "error parsing intrinsics JSON")
	}
	if err = params.CheckValid(); err != nil {
		return nil, err
	}
	return params, nil
}

// PixelToPoint transforms a pixel with depth z (meters) into a 3D point.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) r3.Vector {
	return r3.Vector{
		X: (x - params.Ppx) / params.Fx * z,
		Y: (y - params.Ppy) / params.Fy * z,
		Z: z,
	}
}

// DepthMapToPointCloud projects a depth map into an organized cloud in
// meters. Pixels without a depth reading stay at the zero vector.
func (params *PinholeCameraIntrinsics) DepthMapToPointCloud(dm *DepthMap) (*pointcloud.Dense, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	if dm.Width() != params.Width || dm.Height() != params.Height {
		return nil, errors.Errorf("depth map %dx%d does not match intrinsics %dx%d",
			dm.Width(), dm.Height(), params.Width, params.Height)
	}
	cloud := pointcloud.NewDense(dm.Width(), dm.Height())
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			z := dm.GetDepth(x, y)
			if z == 0 {
				continue
			}
			cloud.Set(x, y, params.PixelToPoint(float64(x), float64(y), float64(z)/1000.))
		}
	}
	return cloud, nil
}
