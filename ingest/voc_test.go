package ingest

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/store"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// writePair 写入 2x2 的图像与标注：标注为 [0 1; 255 1]。
func writePair(t *testing.T, root, key string) {
	t.Helper()
	imageDir, labelDir := VOCLayout(root)

	rgb := image.NewRGBA(image.Rect(0, 0, 2, 2))
	rgb.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	rgb.Set(1, 1, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	writePNG(t, filepath.Join(imageDir, key+".png"), rgb)

	palette := make(color.Palette, 256)
	for i := range palette {
		palette[i] = color.Gray{Y: uint8(i)}
	}
	lbl := image.NewPaletted(image.Rect(0, 0, 2, 2), palette)
	lbl.SetColorIndex(0, 0, 0)
	lbl.SetColorIndex(1, 0, 1)
	lbl.SetColorIndex(0, 1, 255)
	lbl.SetColorIndex(1, 1, 1)
	writePNG(t, filepath.Join(labelDir, key+".png"), lbl)
}

func TestImport(t *testing.T) {
	root := t.TempDir()
	writePair(t, root, "2007_000032")
	writePair(t, root, "2007_000039")

	ss := store.NewSampleStore(store.NewMemoryStore(), "samples/")
	imageDir, labelDir := VOCLayout(root)
	im := &Importer{Samples: ss, ImageDir: imageDir, LabelDir: labelDir, Workers: 2}

	n, err := im.Import(context.Background(), []core.ImageKey{"2007_000032", "2007_000039"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s, err := ss.Sample(context.Background(), "2007_000032")
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 255, 1}, s.Label.Class)
	assert.Equal(t, []uint8{10, 20, 30}, s.Image.Pix[:3])
	assert.Equal(t, []uint8{200, 100, 50}, s.Image.Pix[9:12])

	inv, err := ss.Inventory(context.Background())
	require.NoError(t, err)
	assert.Len(t, inv, 2)
}

func TestImportResize(t *testing.T) {
	root := t.TempDir()
	writePair(t, root, "a")

	ss := store.NewSampleStore(store.NewMemoryStore(), "samples/")
	imageDir, labelDir := VOCLayout(root)
	im := &Importer{Samples: ss, ImageDir: imageDir, LabelDir: labelDir, Width: 4, Height: 4}
	_, err := im.Import(context.Background(), []core.ImageKey{"a"})
	require.NoError(t, err)

	s, err := ss.Sample(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Image.Width)
	assert.Equal(t, 4, s.Label.Height)
	assert.Equal(t, int32(255), s.Label.At(3, 0))
}

func TestImportMissingFile(t *testing.T) {
	ss := store.NewSampleStore(store.NewMemoryStore(), "samples/")
	im := &Importer{Samples: ss, ImageDir: t.TempDir(), LabelDir: t.TempDir()}
	_, err := im.Import(context.Background(), []core.ImageKey{"nope"})
	require.Error(t, err)
	assert.True(t, core.IsStoreLookupFailure(err))
}

func TestResizeLabel(t *testing.T) {
	lm := &core.LabelMap{Height: 2, Width: 2, Class: []int32{0, 1, 2, 3}}
	got := ResizeLabel(lm, 4, 2)
	assert.Equal(t, []int32{0, 0, 1, 1, 2, 2, 3, 3}, got.Class)
	assert.Same(t, lm, ResizeLabel(lm, 2, 2))
}

func TestToLabelMapRejectsRGB(t *testing.T) {
	_, err := ToLabelMap(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	assert.Error(t, err)
}
