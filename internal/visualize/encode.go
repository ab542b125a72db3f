// Package visualize renders score distributions as PNG images and returns
// them base64 encoded for inline embedding in reports.
package visualize

import (
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/cdmetadl/cdscore/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Figure geometry shared by every rendered image (8x4 inches at 100 dpi).
const (
	figWidth  = 8 * vg.Inch
	figHeight = 4 * vg.Inch
	figDPI    = 100

	titleSize = 17
)

// PNGPath returns path with a ".png" extension appended when it has none.
func PNGPath(path string) string {
	if filepath.Ext(path) == "" {
		return path + ".png"
	}
	return path
}

// newPlot returns a plot with the title and x label every figure shares.
func newPlot(metricName, title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(titleSize)
	p.X.Label.Text = fmt.Sprintf("Score (%s)", metricName)
	return p
}

// save renders p to a PNG file at path, reads the file back and returns the
// written path together with the base64 encoding of its bytes.
func save(p *plot.Plot, path string) (string, string, error) {
	path = PNGPath(path)

	c := vgimg.NewWith(vgimg.UseWH(figWidth, figHeight), vgimg.UseDPI(figDPI))
	p.Draw(draw.New(c))

	f, err := os.Create(path)
	if err != nil {
		return "", "", &models.ResourceError{Op: "create image", Path: path, Err: err}
	}
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(f); err != nil {
		f.Close() //nolint:errcheck
		return "", "", &models.ResourceError{Op: "write image", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", "", &models.ResourceError{Op: "write image", Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", &models.ResourceError{Op: "read image", Path: path, Err: err}
	}
	return path, base64.StdEncoding.EncodeToString(data), nil
}

// checkFinite rejects NaN and infinite scores, which have no place on an axis.
func checkFinite(op string, scores []float64) error {
	for i, v := range scores {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.NewComputationError(op, fmt.Errorf("score %d is not finite: %v", i, v))
		}
	}
	return nil
}
