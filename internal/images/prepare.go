package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

// Formats every supported vision endpoint accepts as-is.
var visionFormats = map[string]bool{
	"png":  true,
	"jpeg": true,
	"gif":  true,
	"webp": true,
}

// Prepare fills in the image dimensions and makes the payload acceptable to a
// vision model: images larger than maxDim on either side are downscaled and
// formats outside png/jpeg/gif/webp are re-encoded as PNG. An undecodable
// image is returned unchanged together with the decode error.
func Prepare(img entity.Image, maxDim int) (entity.Image, error) {
	src, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return img, fmt.Errorf("decode %s image: %w", img.MIMEType, err)
	}
	b := src.Bounds()
	img.Width, img.Height = b.Dx(), b.Dy()

	scaled := false
	if maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim) {
		w, h := fit(b.Dx(), b.Dy(), maxDim)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		src = dst
		img.Width, img.Height = w, h
		scaled = true
	}
	if !scaled && visionFormats[format] {
		img.MIMEType = "image/" + format
		return img, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return img, fmt.Errorf("encode png: %w", err)
	}
	img.Data = buf.Bytes()
	img.MIMEType = "image/png"
	return img, nil
}

// fit scales w x h so the longer side equals maxDim.
func fit(w, h, maxDim int) (int, int) {
	if w >= h {
		nh := h * maxDim / w
		if nh < 1 {
			nh = 1
		}
		return maxDim, nh
	}
	nw := w * maxDim / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxDim
}
