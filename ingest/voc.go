// Package ingest 把 PASCAL VOC / Cityscapes 风格的目录（RGB 图像 + 调色板标注 PNG）导入样本库。
package ingest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/nfnt/resize"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/store"
)

// Importer 按 key 读取 <ImageDir>/<key>.jpg（或 .png）与 <LabelDir>/<key>.png，编码后写入样本库。
type Importer struct {
	Samples  *store.SampleStore
	ImageDir string
	LabelDir string

	// Width/Height > 0 时把图像缩放到固定尺寸（双线性），标注用最近邻
	Width  int
	Height int

	Workers int
	Logger  *slog.Logger
}

// VOCLayout 返回 VOC 根目录下的图像与分割标注目录。
func VOCLayout(root string) (imageDir, labelDir string) {
	return filepath.Join(root, "JPEGImages"), filepath.Join(root, "SegmentationClass")
}

// Import 导入 keys 对应的样本，返回成功写入的数量。任何一个样本失败都会中止导入。
func (im *Importer) Import(ctx context.Context, keys []core.ImageKey) (int, error) {
	logger := im.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := im.Workers
	if workers <= 0 {
		workers = 4
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, label, err := im.load(key)
			if err != nil {
				return fmt.Errorf("ingest %q: %w", key, err)
			}
			if err := im.Samples.Put(gctx, key, img, label); err != nil {
				return fmt.Errorf("ingest %q: %w", key, err)
			}
			if n := done.Add(1); n%500 == 0 {
				logger.Info("ingest progress", "done", n, "total", len(keys))
			}
			return nil
		})
	}
	err := g.Wait()
	return int(done.Load()), err
}

func (im *Importer) load(key core.ImageKey) (*core.Image, *core.LabelMap, error) {
	src, err := loadFirst(filepath.Join(im.ImageDir, string(key)), ".jpg", ".png")
	if err != nil {
		return nil, nil, err
	}
	lsrc, err := loadFirst(filepath.Join(im.LabelDir, string(key)), ".png")
	if err != nil {
		return nil, nil, err
	}
	label, err := ToLabelMap(lsrc)
	if err != nil {
		return nil, nil, err
	}
	if !src.Bounds().Size().Eq(lsrc.Bounds().Size()) {
		return nil, nil, fmt.Errorf("image is %v, label is %v", src.Bounds().Size(), lsrc.Bounds().Size())
	}

	if im.Width > 0 && im.Height > 0 {
		src = resize.Resize(uint(im.Width), uint(im.Height), src, resize.Bilinear)
		label = ResizeLabel(label, im.Width, im.Height)
	}
	return ToImage(src), label, nil
}

func loadFirst(base string, exts ...string) (image.Image, error) {
	var lastErr error
	for _, ext := range exts {
		f, err := os.Open(base + ext)
		if err != nil {
			lastErr = err
			continue
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", base+ext, err)
		}
		return img, nil
	}
	return nil, core.Errorf(core.ModuleStore, core.ErrorCodeStoreLookupFailure, "ingest: %s: %v", base, lastErr)
}

// ToImage 把任意 image.Image 转为 HWC RGB。
func ToImage(src image.Image) *core.Image {
	b := src.Bounds()
	out := core.NewImage(b.Dy(), b.Dx())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(src.At(x, y)).(color.RGBA)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2] = c.R, c.G, c.B
			i += 3
		}
	}
	return out
}

// ToLabelMap 读取类别标注：调色板 PNG 取调色板下标（VOC 约定，255 为边界/忽略），灰度 PNG 取灰度值。
func ToLabelMap(src image.Image) (*core.LabelMap, error) {
	b := src.Bounds()
	out := core.NewLabelMap(b.Dy(), b.Dx())
	i := 0
	switch img := src.(type) {
	case *image.Paletted:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out.Class[i] = int32(img.ColorIndexAt(x, y))
				i++
			}
		}
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out.Class[i] = int32(img.GrayAt(x, y).Y)
				i++
			}
		}
	default:
		return nil, fmt.Errorf("label must be a paletted or grayscale PNG, got %T", src)
	}
	return out, nil
}

// ResizeLabel 最近邻缩放标注，类别值不做插值。
func ResizeLabel(lm *core.LabelMap, width, height int) *core.LabelMap {
	if lm.Width == width && lm.Height == height {
		return lm
	}
	out := core.NewLabelMap(height, width)
	for y := 0; y < height; y++ {
		sy := min(y*lm.Height/height, lm.Height-1)
		for x := 0; x < width; x++ {
			sx := min(x*lm.Width/width, lm.Width-1)
			out.Class[y*width+x] = lm.Class[sy*lm.Width+sx]
		}
	}
	return out
}
