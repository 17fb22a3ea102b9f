package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"defect-service/internal/service"
)

var boxColor = color.RGBA{R: 255, G: 0, B: 255, A: 255}

const borderWidth = 3

// Annotate draws bounding boxes and class labels onto a JPEG frame and
// returns the re-encoded image. Used for the synchronous single-image
// response; failures here never affect event persistence.
func Annotate(frameJPEG []byte, detections []service.RawDetection) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(frameJPEG))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	canvas := image.NewRGBA(src.Bounds())
	draw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, draw.Src)

	for _, det := range detections {
		rect := image.Rect(det.BBox.X1, det.BBox.Y1, det.BBox.X2, det.BBox.Y2).
			Intersect(canvas.Bounds())
		if rect.Empty() {
			continue
		}
		drawBorder(canvas, rect)
		drawLabel(canvas, rect.Min.X, rect.Min.Y-4, fmt.Sprintf("%s %.2f", det.Class, det.Confidence))
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, canvas, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return out.Bytes(), nil
}

func drawBorder(canvas *image.RGBA, rect image.Rectangle) {
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+borderWidth),
		image.Rect(rect.Min.X, rect.Max.Y-borderWidth, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+borderWidth, rect.Max.Y),
		image.Rect(rect.Max.X-borderWidth, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, edge := range edges {
		draw.Draw(canvas, edge.Intersect(canvas.Bounds()), &image.Uniform{C: boxColor}, image.Point{}, draw.Src)
	}
}

func drawLabel(canvas *image.RGBA, x, y int, label string) {
	if y < basicfont.Face7x13.Height {
		y = basicfont.Face7x13.Height
	}
	d := &font.Drawer{
		Dst:  canvas,
		Src:  &image.Uniform{C: color.White},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}

	bg := image.Rect(x-1, y-basicfont.Face7x13.Ascent, x+d.MeasureString(label).Ceil()+1, y+3)
	draw.Draw(canvas, bg.Intersect(canvas.Bounds()), &image.Uniform{C: boxColor}, image.Point{}, draw.Src)
	d.DrawString(label)
}
