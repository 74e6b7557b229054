package embedding

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

const resizedJPEGQuality = 85

// fitWithin scales a w×h box so its longer side equals limit.
func fitWithin(w, h, limit int) image.Point {
	if w >= h {
		return image.Pt(limit, max(1, h*limit/w))
	}
	return image.Pt(max(1, w*limit/h), limit)
}

// ResizeImage downsizes photos larger than maxSize on either side and
// re-encodes them as JPEG. Smaller inputs are returned as-is.
func ResizeImage(data []byte, maxSize int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading image header: %w", err)
	}
	if max(cfg.Width, cfg.Height) <= maxSize {
		return data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	size := fitWithin(cfg.Width, cfg.Height, maxSize)
	dst := image.NewRGBA(image.Rectangle{Max: size})
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: resizedJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding resized image: %w", err)
	}
	return out.Bytes(), nil
}
