package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
)

// Image converts a raw frame into an image.Image.
func (f *Frame) Image() (image.Image, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}

	switch f.Format {
	case FormatYUYV:
		return yuyvToYCbCr(f.Data, f.Width, f.Height)
	case FormatRGB24:
		return rgb24ToRGBA(f.Data, f.Width, f.Height)
	case FormatMJPEG:
		img, err := jpeg.Decode(bytes.NewReader(withHuffmanTables(f.Data)))
		if err != nil {
			return nil, fmt.Errorf("decode mjpeg frame: %w", err)
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported pixel format %s", f.Format)
	}
}

// EncodeJPEG writes f to w as a JPEG image.
func EncodeJPEG(w io.Writer, f *Frame, quality int) error {
	img, err := f.Image()
	if err != nil {
		return err
	}
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}

// WriteJPEG encodes f into the file at path. A partially written file is removed.
func WriteJPEG(path string, f *Frame, quality int) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	return EncodeJPEG(file, f, quality)
}

// yuyvToYCbCr unpacks packed 4:2:2 YUYV (Y0 U Y1 V) into planar YCbCr.
func yuyvToYCbCr(data []byte, w, h int) (*image.YCbCr, error) {
	if w%2 != 0 {
		return nil, fmt.Errorf("yuyv width must be even, got %d", w)
	}
	if need := w * h * 2; len(data) < need {
		return nil, fmt.Errorf("short yuyv frame: %d bytes, want %d", len(data), need)
	}

	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio422)
	for y := 0; y < h; y++ {
		row := data[y*w*2 : (y+1)*w*2]
		for x := 0; x < w; x += 2 {
			i := x * 2
			img.Y[y*img.YStride+x] = row[i]
			img.Y[y*img.YStride+x+1] = row[i+2]
			c := y*img.CStride + x/2
			img.Cb[c] = row[i+1]
			img.Cr[c] = row[i+3]
		}
	}
	return img, nil
}

func rgb24ToRGBA(data []byte, w, h int) (*image.RGBA, error) {
	if need := w * h * 3; len(data) < need {
		return nil, fmt.Errorf("short rgb24 frame: %d bytes, want %d", len(data), need)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for p := 0; p < w*h; p++ {
		img.Pix[p*4] = data[p*3]
		img.Pix[p*4+1] = data[p*3+1]
		img.Pix[p*4+2] = data[p*3+2]
		img.Pix[p*4+3] = 0xff
	}
	return img, nil
}
