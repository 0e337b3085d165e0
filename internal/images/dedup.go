package images

import (
	"bytes"
	"crypto/sha256"
	"image"
	"math/bits"

	"golang.org/x/image/draw"

	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

// Dedup drops repeated candidates, keeping the first occurrence. Identical
// payloads on the same page are duplicates; the same image placed on two
// pages is two signatures. Two images on the same page from different
// channels are also duplicates when their difference hashes are within
// maxDistance bits. Images that cannot be decoded only take part in the
// exact check.
func Dedup(imgs []entity.Image, maxDistance int) ([]entity.Image, int) {
	type seen struct {
		img   entity.Image
		hash  uint64
		valid bool
	}
	type exactKey struct {
		page int
		sum  [32]byte
	}
	exact := make(map[exactKey]bool, len(imgs))
	var kept []seen
	skipped := 0

	for _, img := range imgs {
		key := exactKey{page: img.PageNumber, sum: sha256.Sum256(img.Data)}
		if exact[key] {
			skipped++
			continue
		}
		exact[key] = true

		h, ok := DHash(img.Data)
		dup := false
		if ok && maxDistance >= 0 {
			for _, k := range kept {
				if !k.valid || k.img.PageNumber != img.PageNumber || k.img.Source == img.Source {
					continue
				}
				if Hamming(h, k.hash) <= maxDistance {
					dup = true
					break
				}
			}
		}
		if dup {
			skipped++
			continue
		}
		kept = append(kept, seen{img: img, hash: h, valid: ok})
	}

	out := make([]entity.Image, len(kept))
	for i, k := range kept {
		out[i] = k.img
	}
	return out, skipped
}

// DHash computes a 64-bit difference hash: the image is reduced to a 9x8
// grayscale grid and each bit records whether a pixel is brighter than its
// right neighbour.
func DHash(data []byte) (uint64, bool) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, false
	}
	grid := image.NewGray(image.Rect(0, 0, 9, 8))
	draw.ApproxBiLinear.Scale(grid, grid.Bounds(), src, src.Bounds(), draw.Src, nil)

	var h uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			h <<= 1
			if grid.GrayAt(x, y).Y > grid.GrayAt(x+1, y).Y {
				h |= 1
			}
		}
	}
	return h, true
}

// Hamming returns the number of differing bits.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
