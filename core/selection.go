package core

// WeakLabel 是一条不经过 oracle 的伪标注（通常是模型 argmax 预测）。
type WeakLabel struct {
	Key   ImageKey
	Label *LabelMap
}

// RegionSelection 是区域级选择结果：某张图像上待标注的区域（按插入顺序）。
type RegionSelection struct {
	Key     ImageKey
	Regions []Region
}

// SelectionResult 是一次主动选择的结果。
// Keys 按信息量从高到低排列；Scores 与 Keys 一一对应（可为空）。
type SelectionResult struct {
	Keys       []ImageKey
	Scores     []float64
	WeakLabels []WeakLabel
	Regions    []RegionSelection
}

// Validate 检查结果满足选择契约：
// 长度恰为 count、无重复、每个 key 都属于 candidates，伪标注不与选中 key 重叠。
func (r *SelectionResult) Validate(candidates []ImageKey, count int) error {
	if r == nil {
		return NewDomainError(ModuleSelection, ErrorCodeInvariantViolation, "selection: nil result")
	}
	if len(r.Keys) != count {
		return Errorf(ModuleSelection, ErrorCodeInvariantViolation,
			"selection: expected %d keys, got %d", count, len(r.Keys))
	}
	if len(r.Scores) != 0 && len(r.Scores) != len(r.Keys) {
		return Errorf(ModuleSelection, ErrorCodeInvariantViolation,
			"selection: %d scores for %d keys", len(r.Scores), len(r.Keys))
	}
	allowed := make(map[ImageKey]struct{}, len(candidates))
	for _, k := range candidates {
		allowed[k] = struct{}{}
	}
	seen := make(map[ImageKey]struct{}, len(r.Keys))
	for _, k := range r.Keys {
		if _, ok := allowed[k]; !ok {
			return Errorf(ModuleSelection, ErrorCodeInvariantViolation, "selection: key %q is not a candidate", k)
		}
		if _, dup := seen[k]; dup {
			return Errorf(ModuleSelection, ErrorCodeInvariantViolation, "selection: duplicate key %q", k)
		}
		seen[k] = struct{}{}
	}
	for _, w := range r.WeakLabels {
		if _, ok := seen[w.Key]; ok {
			return Errorf(ModuleSelection, ErrorCodeInvariantViolation, "selection: key %q is both selected and weakly labeled", w.Key)
		}
		if _, ok := allowed[w.Key]; !ok {
			return Errorf(ModuleSelection, ErrorCodeInvariantViolation, "selection: weak label for non-candidate %q", w.Key)
		}
	}
	return nil
}

// ScoreVector 是推理产生的单图统计量：标量分数，或逐像素统计图。
type ScoreVector struct {
	Key    ImageKey
	Scalar float64
	Height int
	Width  int
	Pixels []float32 // 可选，len = Height*Width
}
