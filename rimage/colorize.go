package rimage

import (
	"bufio"
	"image"
	"image/png"
	"os"

	"go.uber.org/multierr"

	"github.com/depthvision/bodyparts/parts"
)

// ColorizeLabels renders a label map through the given palette. Purely for
// visualization; the pipeline never reads the result back.
func ColorizeLabels(lm *LabelMap, palette *parts.Palette) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, lm.Width(), lm.Height()))
	for y := 0; y < lm.Height(); y++ {
		for x := 0; x < lm.Width(); x++ {
			img.SetNRGBA(x, y, palette.Color(lm.Get(x, y)))
		}
	}
	return img
}

// WriteImageToFile writes an image to the given path as PNG.
func WriteImageToFile(fn string, img image.Image) (err error) {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err = png.Encode(w, img); err != nil {
		return err
	}
	return w.Flush()
}
