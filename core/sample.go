package core

import "fmt"

// ImageKey 是 backing store 中一对 图像+标注 的唯一标识（路径形式的字节串），创建后不可变。
type ImageKey string

// IgnoreIndex 是标注中"不参与训练/评估"的像素值（cityscapes 约定）。
const IgnoreIndex int32 = 255

// Region 是图像像素坐标下的矩形区域 (x, y, width, height)。
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// FullRegion 返回覆盖整幅 width x height 图像的区域。
func FullRegion(width, height int) Region {
	return Region{X: 0, Y: 0, W: width, H: height}
}

func (r Region) Area() int { return r.W * r.H }

func (r Region) Valid() bool { return r.X >= 0 && r.Y >= 0 && r.W > 0 && r.H > 0 }

// Contains 判断 o 是否完全落在 r 内。
func (r Region) Contains(o Region) bool {
	return o.X >= r.X && o.Y >= r.Y && o.X+o.W <= r.X+r.W && o.Y+o.H <= r.Y+r.H
}

// Clip 把区域裁剪到 width x height 的图像内，完全落在图像外时返回零值区域。
func (r Region) Clip(width, height int) Region {
	x0, y0 := max(r.X, 0), max(r.Y, 0)
	x1, y1 := min(r.X+r.W, width), min(r.Y+r.H, height)
	if x1 <= x0 || y1 <= y0 {
		return Region{}
	}
	return Region{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.X, r.Y, r.W, r.H)
}

// Image 是 HWC 排布的 RGB 图像。
type Image struct {
	Height int
	Width  int
	Pix    []uint8 // len = Height*Width*3
}

func NewImage(height, width int) *Image {
	return &Image{Height: height, Width: width, Pix: make([]uint8, height*width*3)}
}

// Clone 返回深拷贝（加噪等扰动不能修改原图）。
func (im *Image) Clone() *Image {
	out := &Image{Height: im.Height, Width: im.Width, Pix: make([]uint8, len(im.Pix))}
	copy(out.Pix, im.Pix)
	return out
}

// LabelMap 是逐像素的类别标注，IgnoreIndex 或 [0, numClasses) 之外的值视为忽略。
type LabelMap struct {
	Height int
	Width  int
	Class  []int32 // len = Height*Width
}

func NewLabelMap(height, width int) *LabelMap {
	return &LabelMap{Height: height, Width: width, Class: make([]int32, height*width)}
}

// IgnoreLabelMap 返回全部为 IgnoreIndex 的标注。
func IgnoreLabelMap(height, width int) *LabelMap {
	lm := NewLabelMap(height, width)
	for i := range lm.Class {
		lm.Class[i] = IgnoreIndex
	}
	return lm
}

func (lm *LabelMap) At(y, x int) int32 { return lm.Class[y*lm.Width+x] }

func (lm *LabelMap) Clone() *LabelMap {
	out := &LabelMap{Height: lm.Height, Width: lm.Width, Class: make([]int32, len(lm.Class))}
	copy(out.Class, lm.Class)
	return out
}

// Sample 是一条训练/推理样本。
type Sample struct {
	Key   ImageKey
	Image *Image
	Label *LabelMap
}

// Logits 是单张图像的模型输出，CHW 排布：Data[c*H*W + y*W + x]。
type Logits struct {
	Classes int
	Height  int
	Width   int
	Data    []float32
}

func NewLogits(classes, height, width int) *Logits {
	return &Logits{Classes: classes, Height: height, Width: width, Data: make([]float32, classes*height*width)}
}

func (l *Logits) Pixels() int { return l.Height * l.Width }

func (l *Logits) At(c, y, x int) float32 { return l.Data[c*l.Height*l.Width+y*l.Width+x] }

// FeatureMap 是模型的辅助特征输出（如 decoder 特征），CHW 排布。
type FeatureMap struct {
	Channels int
	Height   int
	Width    int
	Data     []float32
}

// Pooled 对每个通道做全局平均池化，得到固定长度的 embedding。
func (f *FeatureMap) Pooled() []float64 {
	out := make([]float64, f.Channels)
	n := f.Height * f.Width
	if n == 0 {
		return out
	}
	for c := 0; c < f.Channels; c++ {
		var sum float64
		for _, v := range f.Data[c*n : (c+1)*n] {
			sum += float64(v)
		}
		out[c] = sum / float64(n)
	}
	return out
}
