// Package analyzer classifies page images before OCR routing.
//
// The analysis is pure and deterministic: one pass over a dimension-capped
// grayscale rendering of the page, no retries and no external calls. An
// unreadable image is reported as an error, not retried.
package analyzer

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	// Registered decoders for the formats intake accepts.
	_ "image/jpeg"
	_ "image/png"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

const (
	// maxDim caps the longest image side before analysis. Quality metrics
	// stabilize well below full scan resolution and the cap bounds cost.
	maxDim = 1024

	// edgeThreshold is the gradient magnitude (0-255 scale) above which a
	// pixel counts as an edge.
	edgeThreshold = 40.0

	// handwritingEdgeDensity is the edge-pixel fraction above which the
	// page is assumed to carry handwriting. Printed text on a clean page
	// sits well below this; dense irregular strokes push past it.
	handwritingEdgeDensity = 0.16

	sharpnessLow  = 4.0
	sharpnessHigh = 11.0
	contrastLow   = 28.0
	contrastHigh  = 52.0
)

// Analysis is the analyzer output for one page image.
type Analysis struct {
	Quality        types.Quality `json:"quality"`
	HasHandwriting bool          `json:"has_handwriting"`

	// Raw metrics, kept for status reporting and threshold tuning.
	Sharpness   float64 `json:"sharpness"`
	Contrast    float64 `json:"contrast"`
	EdgeDensity float64 `json:"edge_density"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

// AnalyzeBytes decodes an encoded page image and analyzes it.
func AnalyzeBytes(data []byte) (Analysis, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to decode page image: %w", err)
	}
	return Analyze(img), nil
}

// Analyze computes quality and handwriting indicators for a decoded image.
func Analyze(img image.Image) Analysis {
	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	// Cap the longest side, then flatten to grayscale.
	if origW > maxDim || origH > maxDim {
		if origW >= origH {
			img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
		}
	}
	gray := imaging.Grayscale(img)

	w := gray.Bounds().Dx()
	h := gray.Bounds().Dy()
	lum := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w*4]
		for x := 0; x < w; x++ {
			lum[y*w+x] = float64(row[x*4]) // R==G==B after Grayscale
		}
	}

	sharpness, edgeDensity := edgeMetrics(lum, w, h)
	contrast := intensitySpread(lum)

	return Analysis{
		Quality:        qualityFor(sharpness, contrast),
		HasHandwriting: edgeDensity > handwritingEdgeDensity,
		Sharpness:      sharpness,
		Contrast:       contrast,
		EdgeDensity:    edgeDensity,
		Width:          origW,
		Height:         origH,
	}
}

// edgeMetrics returns mean gradient magnitude (edge energy) and the
// fraction of pixels whose gradient exceeds edgeThreshold.
func edgeMetrics(lum []float64, w, h int) (sharpness, density float64) {
	if w < 3 || h < 3 {
		return 0, 0
	}
	var total float64
	var edges, samples int
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			dx := lum[y*w+x+1] - lum[y*w+x-1]
			dy := lum[(y+1)*w+x] - lum[(y-1)*w+x]
			mag := math.Hypot(dx, dy)
			total += mag
			if mag > edgeThreshold {
				edges++
			}
			samples++
		}
	}
	return total / float64(samples), float64(edges) / float64(samples)
}

// intensitySpread is the standard deviation of pixel luminance.
func intensitySpread(lum []float64) float64 {
	if len(lum) == 0 {
		return 0
	}
	var mean float64
	for _, v := range lum {
		mean += v
	}
	mean /= float64(len(lum))

	var variance float64
	for _, v := range lum {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(lum)))
}

func qualityFor(sharpness, contrast float64) types.Quality {
	switch {
	case sharpness < sharpnessLow || contrast < contrastLow:
		return types.QualityLow
	case sharpness >= sharpnessHigh && contrast >= contrastHigh:
		return types.QualityHigh
	default:
		return types.QualityMedium
	}
}
