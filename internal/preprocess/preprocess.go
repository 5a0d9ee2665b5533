// Package preprocess converts uploaded chest X-ray images into the fixed
// tensor shape the classifier expects.
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/xraylab/pneumonia-api/internal/model"
)

// Decode parses raw JPEG or PNG bytes into an image.
func Decode(raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Normalize converts a decoded image of any size and color mode into a flat
// NHWC tensor of shape (1, 224, 224, 3) with channel values in [0,1].
//
// Steps, in order: resample to exactly 224x224 (aspect ratio is not
// preserved, no letterboxing), read each pixel as RGB (alpha is dropped,
// grayscale intensity is replicated across channels), scale to [0,1]. The
// leading batch dimension is implicit in the flat layout.
func Normalize(img image.Image) []float32 {
	resized := resize.Resize(model.ImageSize, model.ImageSize, img, resize.Lanczos3)

	data := make([]float32, model.TensorSize)
	i := 0
	for y := 0; y < model.ImageSize; y++ {
		for x := 0; x < model.ImageSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			// RGBA returns 16-bit channels; shift down to 8-bit first.
			data[i] = float32(r>>8) / 255.0
			data[i+1] = float32(g>>8) / 255.0
			data[i+2] = float32(b>>8) / 255.0
			i += 3
		}
	}
	return data
}
