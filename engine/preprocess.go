package engine

import (
	iface "PostureServer/interface"
	"fmt"
	"image"

	"github.com/nfnt/resize"
)

// MaxFrameSide bounds frame width and height so the pixel count cannot
// overflow.
const MaxFrameSide = 1 << 14

// FrameToImage converts a capture frame (gray, BGR or BGRA) to RGBA.
func FrameToImage(frame iface.Frame) (*image.RGBA, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	if frame.Width > MaxFrameSide || frame.Height > MaxFrameSide {
		return nil, fmt.Errorf("frame %dx%d exceeds %d pixels per side", frame.Width, frame.Height, MaxFrameSide)
	}
	ch := frame.Channels
	if ch != 1 && ch != 3 && ch != 4 {
		return nil, fmt.Errorf("unsupported channel count %d", ch)
	}
	if len(frame.Data) < frame.Width*frame.Height*ch {
		return nil, fmt.Errorf("frame data too short: %d bytes for %dx%dx%d",
			len(frame.Data), frame.Width, frame.Height, ch)
	}
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	n := frame.Width * frame.Height
	for i := 0; i < n; i++ {
		px := img.Pix[i*4 : i*4+4 : i*4+4]
		switch ch {
		case 1:
			v := frame.Data[i]
			px[0], px[1], px[2] = v, v, v
		case 3, 4:
			src := frame.Data[i*ch:]
			px[0], px[1], px[2] = src[2], src[1], src[0]
		}
		px[3] = 0xff
	}
	return img, nil
}

// FillInput scales img to size x size and writes it into dst as NHWC RGB
// floats in [0, 1].
func FillInput(dst []float32, img image.Image, size int) error {
	if len(dst) != size*size*3 {
		return fmt.Errorf("input tensor holds %d values, want %d", len(dst), size*size*3)
	}
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	b := resized.Bounds()
	if rgba, ok := resized.(*image.RGBA); ok {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				p := rgba.PixOffset(b.Min.X+x, b.Min.Y+y)
				o := (y*size + x) * 3
				dst[o] = float32(rgba.Pix[p]) / 255
				dst[o+1] = float32(rgba.Pix[p+1]) / 255
				dst[o+2] = float32(rgba.Pix[p+2]) / 255
			}
		}
		return nil
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			o := (y*size + x) * 3
			dst[o] = float32(r>>8) / 255
			dst[o+1] = float32(g>>8) / 255
			dst[o+2] = float32(bl>>8) / 255
		}
	}
	return nil
}

// DecodeLandmarks takes the first NumLandmarks entries of a flat landmark
// output in input pixels and normalizes them by the input size.
func DecodeLandmarks(raw []float32, size int) (*iface.LandmarkSet, error) {
	if len(raw) < iface.NumLandmarks*landmarkStride {
		return nil, fmt.Errorf("landmark output has %d values, want at least %d",
			len(raw), iface.NumLandmarks*landmarkStride)
	}
	s := float64(size)
	set := &iface.LandmarkSet{}
	for i := range set {
		o := i * landmarkStride
		set[i] = iface.Landmark{X: float64(raw[o]) / s, Y: float64(raw[o+1]) / s}
	}
	return set, nil
}
