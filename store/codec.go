package store

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/rushteam/activeseg/core"
)

// 样本 blob 格式：
//
//	magic "ASG1" | uint32 height | uint32 width | height*width*4 字节
//
// 每个像素 4 字节：R G B label，与导出时的 HxWx4 数组一致；label 255 表示忽略。
var sampleMagic = []byte("ASG1")

const sampleHeaderSize = 12

// EncodeSample 把图像与标注编码为 blob。标注为 nil 时全部写入 IgnoreIndex。
func EncodeSample(img *core.Image, label *core.LabelMap) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("encode sample: nil image")
	}
	if len(img.Pix) != img.Height*img.Width*3 {
		return nil, fmt.Errorf("encode sample: image has %d bytes, want %d", len(img.Pix), img.Height*img.Width*3)
	}
	if label != nil && (label.Height != img.Height || label.Width != img.Width) {
		return nil, fmt.Errorf("encode sample: label %dx%d does not match image %dx%d",
			label.Height, label.Width, img.Height, img.Width)
	}

	n := img.Height * img.Width
	buf := make([]byte, sampleHeaderSize+n*4)
	copy(buf, sampleMagic)
	binary.LittleEndian.PutUint32(buf[4:], uint32(img.Height))
	binary.LittleEndian.PutUint32(buf[8:], uint32(img.Width))

	body := buf[sampleHeaderSize:]
	for i := 0; i < n; i++ {
		copy(body[i*4:i*4+3], img.Pix[i*3:i*3+3])
		cls := core.IgnoreIndex
		if label != nil {
			cls = label.Class[i]
		}
		if cls < 0 || cls > 255 {
			cls = core.IgnoreIndex
		}
		body[i*4+3] = uint8(cls)
	}
	return buf, nil
}

// DecodeSample 解析 blob，格式不符时返回错误（调用方负责包装为 StoreLookupFailure）。
func DecodeSample(key core.ImageKey, blob []byte) (*core.Sample, error) {
	if len(blob) < sampleHeaderSize || !bytes.Equal(blob[:4], sampleMagic) {
		return nil, fmt.Errorf("decode sample %q: bad header", key)
	}
	h := int(binary.LittleEndian.Uint32(blob[4:]))
	w := int(binary.LittleEndian.Uint32(blob[8:]))
	n := h * w
	if h <= 0 || w <= 0 || len(blob) != sampleHeaderSize+n*4 {
		return nil, fmt.Errorf("decode sample %q: truncated blob (%dx%d, %d bytes)", key, h, w, len(blob))
	}

	img := core.NewImage(h, w)
	label := core.NewLabelMap(h, w)
	body := blob[sampleHeaderSize:]
	for i := 0; i < n; i++ {
		copy(img.Pix[i*3:i*3+3], body[i*4:i*4+3])
		label.Class[i] = int32(body[i*4+3])
	}
	return &core.Sample{Key: key, Image: img, Label: label}, nil
}
