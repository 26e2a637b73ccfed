// Package camera reads frames from an OpenCV capture device, video file or
// stream URL.
package camera

import (
	iface "PostureServer/interface"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gocv.io/x/gocv"
)

var ErrReadFrame = errors.New("failed to read frame")

// Device is an iface.FrameSource backed by gocv. It is used from the capture
// goroutine only.
type Device struct {
	source  string
	capture *gocv.VideoCapture
	mat     gocv.Mat
	bgr     gocv.Mat
}

// NewDevice takes a camera index ("0") or a file path / URL.
func NewDevice(source string) *Device {
	return &Device{source: source}
}

func (d *Device) Open() error {
	var src any = d.source
	if id, err := strconv.Atoi(d.source); err == nil {
		src = id
	}
	capture, err := gocv.OpenVideoCapture(src)
	if err != nil {
		return fmt.Errorf("open %q: %w", d.source, err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return fmt.Errorf("open %q: video capture is not opened", d.source)
	}
	d.capture = capture
	d.mat = gocv.NewMat()
	d.bgr = gocv.NewMat()
	return nil
}

func (d *Device) Read() (iface.Frame, error) {
	if d.capture == nil {
		return iface.Frame{}, fmt.Errorf("%w: device not open", ErrReadFrame)
	}
	if ok := d.capture.Read(&d.mat); !ok || d.mat.Empty() {
		return iface.Frame{}, ErrReadFrame
	}
	return d.toFrame(d.mat)
}

// toFrame copies a Mat into a BGR frame.
func (d *Device) toFrame(mat gocv.Mat) (iface.Frame, error) {
	src := mat
	switch mat.Channels() {
	case 3:
	case 1:
		gocv.CvtColor(mat, &d.bgr, gocv.ColorGrayToBGR)
		src = d.bgr
	case 4:
		gocv.CvtColor(mat, &d.bgr, gocv.ColorBGRAToBGR)
		src = d.bgr
	default:
		return iface.Frame{}, fmt.Errorf("%w: unsupported channel count %d", ErrReadFrame, mat.Channels())
	}
	return iface.Frame{
		Data:      src.ToBytes(),
		Width:     src.Cols(),
		Height:    src.Rows(),
		Channels:  3,
		Timestamp: time.Now(),
	}, nil
}

func (d *Device) Close() error {
	if d.capture == nil {
		return nil
	}
	err := d.capture.Close()
	_ = d.mat.Close()
	_ = d.bgr.Close()
	d.capture = nil
	return err
}
