// Package main runs the body-part detection pipeline over a single captured
// frame and writes the colorized label image.
package main

import (
	"context"
	"strings"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/depthvision/bodyparts/detection"
	"github.com/depthvision/bodyparts/pointcloud"
	"github.com/depthvision/bodyparts/rimage"
	"github.com/depthvision/bodyparts/segmentation"
)

var logger = golog.NewDevelopmentLogger("bodyparts")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Trees      string `flag:"trees,required,usage=comma-separated list of tree files"`
	Depth      string `flag:"depth,required,usage=depth map file"`
	Cloud      string `flag:"cloud,usage=organized pcd file; projected from depth when omitted"`
	Intrinsics string `flag:"intrinsics,usage=pinhole intrinsics json, needed when no cloud is given"`
	Out        string `flag:"out,default=labels.png,usage=colorized label output png"`
	MinPts     int    `flag:"min-pts,default=200,usage=minimum points per blob"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	dm, err := rimage.ParseDepthMapFromFile(argsParsed.Depth)
	if err != nil {
		return err
	}

	var cloud *pointcloud.Dense
	switch {
	case argsParsed.Cloud != "":
		if cloud, err = pointcloud.ReadPCDFromFile(argsParsed.Cloud); err != nil {
			return err
		}
	case argsParsed.Intrinsics != "":
		params, err := rimage.NewPinholeCameraIntrinsicsFromJSONFile(argsParsed.Intrinsics)
		if err != nil {
			return err
		}
		if cloud, err = params.DepthMapToPointCloud(dm); err != nil {
			return err
		}
	default:
		return errors.New("need either a cloud pcd or intrinsics to project the depth map with")
	}

	detector, err := detection.New(
		strings.Split(argsParsed.Trees, ","),
		dm.Width(), dm.Height(),
		logger,
	)
	if err != nil {
		return err
	}

	if err := detector.Process(ctx, dm, cloud, argsParsed.MinPts); err != nil {
		return err
	}

	matrix := detector.Blobs()
	logger.Infow("frame processed", "blobs", matrix.Total())
	matrix.Iterate(func(b *segmentation.Blob) bool {
		logger.Infow("blob",
			"id", b.ID,
			"label", b.Label.String(),
			"lid", b.LID,
			"points", len(b.Indices),
			"mean", b.Mean,
		)
		return true
	})

	return rimage.WriteImageToFile(argsParsed.Out, detector.ColorizeLabels())
}
