package engine

import (
	iface "PostureServer/interface"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_All(t *testing.T) {
	d := &Detector{}

	t.Run("Test Detect Unloaded", func(t *testing.T) {
		set, err := d.Detect(iface.Frame{Data: []byte{1, 2, 3}, Width: 1, Height: 1, Channels: 3})
		assert.ErrorIs(t, err, ErrNotLoaded)
		assert.Nil(t, set)
	})

	t.Run("Test LoadModel Validation", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ModelPath = ""
		assert.Error(t, d.LoadModel(cfg))
		cfg = DefaultConfig()
		cfg.LandmarkValues = 10
		assert.Error(t, d.LoadModel(cfg))
	})

	t.Run("Test Destroy", func(t *testing.T) {
		d.Destroy()
		config := d.CheckConfig()
		assert.Equal(t, "", config.ModelPath)
		assert.Equal(t, 0, config.InputSize)
		assert.Equal(t, UNREGISTERED, d.State)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 256, cfg.InputSize)
	assert.Equal(t, 195, cfg.LandmarkValues)
	assert.Equal(t, float32(0.5), cfg.MinPresence)
}

func TestFrameToImage(t *testing.T) {
	t.Run("Test BGR", func(t *testing.T) {
		img, err := FrameToImage(iface.Frame{Data: []byte{10, 20, 30, 1, 2, 3}, Width: 2, Height: 1, Channels: 3})
		require.NoError(t, err)
		assert.Equal(t, color.RGBA{R: 30, G: 20, B: 10, A: 255}, img.RGBAAt(0, 0))
		assert.Equal(t, color.RGBA{R: 3, G: 2, B: 1, A: 255}, img.RGBAAt(1, 0))
	})

	t.Run("Test BGRA", func(t *testing.T) {
		img, err := FrameToImage(iface.Frame{Data: []byte{10, 20, 30, 0}, Width: 1, Height: 1, Channels: 4})
		require.NoError(t, err)
		assert.Equal(t, color.RGBA{R: 30, G: 20, B: 10, A: 255}, img.RGBAAt(0, 0))
	})

	t.Run("Test Gray", func(t *testing.T) {
		img, err := FrameToImage(iface.Frame{Data: []byte{7, 9}, Width: 1, Height: 2, Channels: 1})
		require.NoError(t, err)
		assert.Equal(t, color.RGBA{R: 9, G: 9, B: 9, A: 255}, img.RGBAAt(0, 1))
	})

	t.Run("Test Invalid", func(t *testing.T) {
		_, err := FrameToImage(iface.Frame{})
		assert.Error(t, err)
		_, err = FrameToImage(iface.Frame{Data: []byte{1}, Width: 2, Height: 2, Channels: 3})
		assert.Error(t, err)
		_, err = FrameToImage(iface.Frame{Data: []byte{1, 2}, Width: 1, Height: 1, Channels: 2})
		assert.Error(t, err)
	})

	t.Run("Test Bad Geometry", func(t *testing.T) {
		bad := []iface.Frame{
			{Data: []byte{1, 2, 3}, Width: 1 << 40, Height: 1 << 40, Channels: 3},
			{Data: []byte{1, 2, 3}, Width: MaxFrameSide + 1, Height: 1, Channels: 3},
			{Data: []byte{1, 2, 3}, Width: -4, Height: 2, Channels: 3},
			{Data: []byte{1, 2, 3}, Width: 1, Height: 1, Channels: 0},
		}
		for _, f := range bad {
			assert.NotPanics(t, func() {
				img, err := FrameToImage(f)
				assert.Error(t, err)
				assert.Nil(t, img)
			})
		}
	})
}

func TestFillInput(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 255, 0, 51, 255
	}
	dst := make([]float32, 16*16*3)
	require.NoError(t, FillInput(dst, src, 16))
	for i := 0; i < len(dst); i += 3 {
		assert.InDelta(t, 1.0, dst[i], 0.01)
		assert.InDelta(t, 0.0, dst[i+1], 0.01)
		assert.InDelta(t, 0.2, dst[i+2], 0.01)
	}

	assert.Error(t, FillInput(make([]float32, 5), src, 16))
}

func TestDecodeLandmarks(t *testing.T) {
	raw := make([]float32, 39*landmarkStride)
	for i := 0; i < 39; i++ {
		raw[i*landmarkStride] = float32(i)
		raw[i*landmarkStride+1] = float32(2 * i)
		raw[i*landmarkStride+2] = 99 // z is ignored
	}
	set, err := DecodeLandmarks(raw, 256)
	require.NoError(t, err)
	assert.InDelta(t, 25.0/256, set[25].X, 1e-9)
	assert.InDelta(t, 50.0/256, set[25].Y, 1e-9)
	assert.InDelta(t, 64.0/256, set[32].Y, 1e-9)

	_, err = DecodeLandmarks(raw[:10], 256)
	assert.Error(t, err)
}

func TestSearchLocations(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "bin", "release")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), 0o755))
	lib := filepath.Join(root, "lib", "libonnxruntime.so.1.22.0")
	require.NoError(t, os.WriteFile(lib, []byte("stub"), 0o644))

	found, err := searchLocations("libonnxruntime.so", []string{nested})
	require.NoError(t, err)
	assert.Equal(t, lib, found)

	_, err = searchLocations("missing.so", []string{nested})
	assert.ErrorContains(t, err, nested)
}

func TestLocateLibrary_Explicit(t *testing.T) {
	_, err := LocateLibrary(filepath.Join(t.TempDir(), "nope.so"))
	assert.Error(t, err)

	p := filepath.Join(t.TempDir(), "custom.so")
	require.NoError(t, os.WriteFile(p, nil, 0o644))
	found, err := LocateLibrary(p)
	require.NoError(t, err)
	assert.Equal(t, p, found)
}
