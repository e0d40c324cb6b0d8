// Package detection wires the body-part pipeline together: forest
// classification, label smoothing, connected-component labeling, blob
// aggregation, and blob relation building, one blocking call per frame.
package detection

import (
	"context"
	"image"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/depthvision/bodyparts/forest"
	"github.com/depthvision/bodyparts/parts"
	"github.com/depthvision/bodyparts/pointcloud"
	"github.com/depthvision/bodyparts/rimage"
	"github.com/depthvision/bodyparts/segmentation"
)

// ErrNoTrees is returned when a detector is constructed without tree files.
var ErrNoTrees = errors.New("detector needs at least one tree file")

// Default pipeline constants.
const (
	DefaultMaxClusterSize   = 25000
	DefaultClusterTolerance = 0.05 // meters
	DefaultSmoothingPatch   = 5
	DefaultDepthThreshold   = 300 // millimeters
	DefaultMaxRelationDist  = 1.0 // meters
)

type config struct {
	maxClusterSize   int
	clusterTolerance float64
	smoothingPatch   int
	depthThreshold   int
	maxRelationDist  float64
	palette          *parts.Palette
}

// Option adjusts detector construction.
type Option func(*config)

// WithMaxClusterSize overrides the inclusive upper blob size bound.
func WithMaxClusterSize(n int) Option {
	return func(c *config) { c.maxClusterSize = n }
}

// WithClusterTolerance overrides the component connectivity distance in
// meters (squared before use).
func WithClusterTolerance(tol float64) Option {
	return func(c *config) { c.clusterTolerance = tol }
}

// WithSmoothing overrides the label smoother's window side length and depth
// gate in millimeters.
func WithSmoothing(patch, depthThreshold int) Option {
	return func(c *config) {
		c.smoothingPatch = patch
		c.depthThreshold = depthThreshold
	}
}

// WithMaxRelationDist overrides the blob relation distance ceiling in meters.
func WithMaxRelationDist(d float64) Option {
	return func(c *config) { c.maxRelationDist = d }
}

// WithPalette overrides the visualization palette.
func WithPalette(p *parts.Palette) Option {
	return func(c *config) { c.palette = p }
}

// Detector runs the per-frame pipeline and owns every per-frame scratch
// buffer. One Detector processes one frame at a time; concurrent Process
// calls on the same instance must be serialized by the caller.
type Detector struct {
	width  int
	height int
	logger golog.Logger

	forest     *forest.Forest
	smoother   *segmentation.Smoother
	labeler    *segmentation.ComponentLabeler
	aggregator *segmentation.Aggregator
	relations  *segmentation.RelationBuilder
	palette    *parts.Palette

	// per-frame scratch, reused across frames
	rawLabels    *rimage.LabelMap
	smoothLabels *rimage.LabelMap
	edges        []uint8
	comps        []int32

	blobs *segmentation.BlobMatrix
}

// New loads the tree files and builds a detector for frames of the given
// dimensions. All validation (non-empty tree list, loadable tree files,
// sane options) happens before any frame buffer is allocated, so a rejected
// construction holds nothing.
func New(treeFiles []string, width, height int, logger golog.Logger, opts ...Option) (*Detector, error) {
	if len(treeFiles) == 0 {
		return nil, ErrNoTrees
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid frame dimensions %dx%d", width, height)
	}

	cfg := config{
		maxClusterSize:   DefaultMaxClusterSize,
		clusterTolerance: DefaultClusterTolerance,
		smoothingPatch:   DefaultSmoothingPatch,
		depthThreshold:   DefaultDepthThreshold,
		maxRelationDist:  DefaultMaxRelationDist,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	f, err := forest.Load(treeFiles)
	if err != nil {
		return nil, err
	}
	smoother, err := segmentation.NewSmoother(cfg.smoothingPatch, cfg.depthThreshold)
	if err != nil {
		return nil, err
	}
	labeler, err := segmentation.NewComponentLabeler(cfg.clusterTolerance)
	if err != nil {
		return nil, err
	}
	aggregator, err := segmentation.NewAggregator(cfg.maxClusterSize)
	if err != nil {
		return nil, err
	}
	relations, err := segmentation.NewRelationBuilder(cfg.maxRelationDist)
	if err != nil {
		return nil, err
	}
	palette := cfg.palette
	if palette == nil {
		palette = parts.NewPalette()
	}

	d := &Detector{
		width:      width,
		height:     height,
		logger:     logger,
		forest:     f,
		smoother:   smoother,
		labeler:    labeler,
		aggregator: aggregator,
		relations:  relations,
		palette:    palette,
	}
	d.allocateBuffers()
	return d, nil
}

func (d *Detector) allocateBuffers() {
	d.rawLabels = rimage.NewLabelMap(d.width, d.height)
	d.smoothLabels = rimage.NewLabelMap(d.width, d.height)
	d.edges = make([]uint8, d.width*d.height)
	d.comps = make([]int32, d.width*d.height)
	d.blobs = segmentation.NewBlobMatrix()
}

// TreeCount returns the number of trees loaded into the classifier.
func (d *Detector) TreeCount() int {
	return d.forest.TreeCount()
}

// Width returns the configured frame width.
func (d *Detector) Width() int {
	return d.width
}

// Height returns the configured frame height.
func (d *Detector) Height() int {
	return d.height
}

// Labels returns the smoothed label grid of the last processed frame. The
// returned map aliases the detector's scratch buffer and is only valid until
// the next Process call; callers needing longer lifetimes must Clone it.
func (d *Detector) Labels() *rimage.LabelMap {
	return d.smoothLabels
}

// Blobs returns the blob matrix of the last processed frame. The matrix is
// freshly built every frame, so it stays valid after later Process calls.
func (d *Detector) Blobs() *segmentation.BlobMatrix {
	return d.blobs
}

// ColorizeLabels renders the last frame's smoothed labels through the
// detector's palette.
func (d *Detector) ColorizeLabels() *image.NRGBA {
	return rimage.ColorizeLabels(d.smoothLabels, d.palette)
}

// Process runs the full pipeline over one frame, blocking until done, and
// overwrites the detector's label buffers and blob matrix. The depth frame
// and cloud must match the construction dimensions; a mismatch fails before
// any buffer is touched. The context is only consulted between stages; a
// started frame always finishes its current pass.
func (d *Detector) Process(ctx context.Context, depth *rimage.DepthMap, cloud *pointcloud.Dense, minPtsPerCluster int) error {
	if depth.Width() != d.width || depth.Height() != d.height {
		return errors.Errorf("depth frame %dx%d does not match detector %dx%d",
			depth.Width(), depth.Height(), d.width, d.height)
	}
	if cloud.Width() != d.width || cloud.Height() != d.height {
		return errors.Errorf("point cloud %dx%d does not match detector %dx%d",
			cloud.Width(), cloud.Height(), d.width, d.height)
	}

	start := time.Now()

	if err := d.forest.Classify(depth, d.rawLabels); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := d.smoother.Smooth(d.rawLabels, depth, d.smoothLabels); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := d.labeler.BuildEdges(d.smoothLabels, depth, d.edges); err != nil {
		return err
	}
	if err := d.labeler.LabelComponents(d.width, d.height, d.edges, d.comps); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	matrix, err := d.aggregator.Aggregate(d.smoothLabels, d.comps, cloud, minPtsPerCluster)
	if err != nil {
		return err
	}
	d.relations.BuildRelations(matrix)
	d.blobs = matrix

	d.logger.Debugw("frame processed",
		"blobs", matrix.Total(),
		"took", time.Since(start))
	return nil
}
