package features

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/fakeProgrammer0/ML-lab/golang/mlkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, fileName string, img image.Image) {
	t.Helper()
	f, err := os.Create(fileName)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(10 * (x + y*w))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestNPD(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.Pix = []uint8{0, 0, 10, 30}

	result := NPD(img)
	require.Len(t, result, NPDLen(4))
	//pairs: (0,1) (0,2) (0,3) (1,2) (1,3) (2,3)
	assert.InDeltaSlice(t, []float64{0, -1, -1, -1, -1, -0.5}, result, 1e-12)

	assert.Equal(t, 165600, NPDLen(ImageSize*ImageSize))
}

func TestLoadGrayAndResize(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "gradient.png")
	writePNG(t, fileName, gradient(6, 4))

	gray, err := LoadGray(fileName)
	require.NoError(t, err)
	assert.Equal(t, 6, gray.Bounds().Dx())
	assert.Equal(t, 4, gray.Bounds().Dy())
	assert.Equal(t, uint8(0), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(70), gray.GrayAt(1, 1).Y)

	resized := Resize(gray, 3, 3)
	assert.Equal(t, image.Rect(0, 0, 3, 3), resized.Bounds())

	_, err = LoadGray(filepath.Join(t.TempDir(), "missing.png"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), gradient(4, 4))
	writePNG(t, filepath.Join(dir, "b.png"), gradient(5, 5))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	dm, err := LoadDirectory(dir, -1, 3, 2)
	require.NoError(t, err)
	h, w, err := dm.Validate()
	require.NoError(t, err)
	assert.Equal(t, 2, h)
	assert.Equal(t, NPDLen(9), w)
	assert.Equal(t, -1.0, dm.Labels.AtVec(1))

	expected, err := Extract(filepath.Join(dir, "b.png"), 3)
	require.NoError(t, err)
	assert.Equal(t, expected, dm.Samples.RawRowView(1))
}

func TestLoadDirectoryErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadDirectory(dir, 1, 3, 1)
	assert.True(t, errors.Is(err, mlkit.ErrEmptyDataset), "got %v", err)

	_, err = LoadDirectory(dir, 0, 3, 1)
	assert.True(t, errors.Is(err, mlkit.ErrInvalidLabel), "got %v", err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not an image"), 0o644))
	_, err = LoadDirectory(dir, 1, 3, 1)
	assert.Error(t, err)
}
