package qrcv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// LoadGray reads an image file from disk as 8-bit gray.
func LoadGray(path string) (*image.Gray, error) {
	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("qrcv: cannot read image %q", path)
	}
	defer mat.Close()

	return MatToGray(mat)
}

// MatToGray copies a single channel 8-bit Mat into a new image.Gray.
func MatToGray(mat gocv.Mat) (*image.Gray, error) {
	if mat.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("qrcv: expected CV_8UC1, got %v", mat.Type())
	}
	w, h := mat.Cols(), mat.Rows()
	img := image.NewGray(image.Rect(0, 0, w, h))

	data, err := mat.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("qrcv: mat data: %w", err)
	}
	copy(img.Pix, data)
	return img, nil
}
