// Package dataset 维护主动学习的样本池：labeled / remaining / weakly labeled 的划分，
// 以及训练阶段看到的样本视图（全部 batch 或仅最近一次扩充）。
//
// Pool 是成员关系的唯一所有者。选择策略只拿到 key 的快照，返回结果后由主循环调用 Expand。
// 所有修改都发生在两个 epoch 之间，不会与训练数据的迭代并发。
package dataset

import (
	"math"
	"slices"
	"sync"

	"github.com/rushteam/activeseg/core"
)

// Mode 是训练视图的模式开关（状态切换，不复制数据集）。
type Mode int

const (
	ModeAllBatches     Mode = iota // labeled 全集
	ModeLastAddedBatch             // 仅最近一次扩充的 key（query_only 训练）
)

func (m Mode) String() string {
	if m == ModeLastAddedBatch {
		return "last_added_batch"
	}
	return "all_batches"
}

// Entry 是训练视图中的一项。
type Entry struct {
	Key core.ImageKey

	// Weak 为 true 时标注来自伪标签而不是 oracle
	Weak bool

	// Regions 非空时只有这些区域带真值，其余像素在加载时被置为忽略值
	Regions []core.Region
}

// Option 配置 Pool。
type Option func(*Pool)

// WithRegions 启用区域标注模式：每个已标注 key 对应一组矩形区域。
// width/height 是整图区域（种子集与整图扩充使用）的尺寸。
func WithRegions(width, height int) Option {
	return func(p *Pool) {
		p.regionBased = true
		p.width = width
		p.height = height
	}
}

// WithImageSize 记录整图尺寸，用于统计已标注像素数。
func WithImageSize(width, height int) Option {
	return func(p *Pool) {
		p.width = width
		p.height = height
	}
}

// Pool 是样本池。
type Pool struct {
	mu sync.RWMutex

	total int

	labeled    []core.ImageKey
	labeledSet map[core.ImageKey]struct{}

	remaining    []core.ImageKey
	remainingSet map[core.ImageKey]struct{}

	lastAdded []core.ImageKey

	regionBased      bool
	width, height    int
	regions          map[core.ImageKey][]core.Region
	lastAddedRegions map[core.ImageKey][]core.Region

	weak      []core.WeakLabel
	weakIndex map[core.ImageKey]int

	mode      Mode
	replicate int
}

// NewPool 用样本全集 inventory 与种子集 seed 创建样本池。
// remaining 保持 inventory 的顺序；种子集中不在 inventory 里的 key 返回 STORE_LOOKUP_FAILURE。
func NewPool(inventory, seed []core.ImageKey, opts ...Option) (*Pool, error) {
	p := &Pool{
		labeledSet:       make(map[core.ImageKey]struct{}),
		remainingSet:     make(map[core.ImageKey]struct{}),
		regions:          make(map[core.ImageKey][]core.Region),
		lastAddedRegions: make(map[core.ImageKey][]core.Region),
		weakIndex:        make(map[core.ImageKey]int),
		replicate:        1,
	}
	for _, opt := range opts {
		opt(p)
	}

	all := make(map[core.ImageKey]struct{}, len(inventory))
	ordered := make([]core.ImageKey, 0, len(inventory))
	for _, k := range inventory {
		if _, dup := all[k]; dup {
			continue
		}
		all[k] = struct{}{}
		ordered = append(ordered, k)
	}
	p.total = len(ordered)

	for _, k := range seed {
		if _, ok := all[k]; !ok {
			return nil, core.Errorf(core.ModulePool, core.ErrorCodeStoreLookupFailure,
				"pool: seed key %q is not in the store inventory", k)
		}
		if _, dup := p.labeledSet[k]; dup {
			continue
		}
		p.labeledSet[k] = struct{}{}
		p.labeled = append(p.labeled, k)
		if p.regionBased {
			p.regions[k] = []core.Region{p.fullRegion()}
		}
	}
	for _, k := range ordered {
		if _, ok := p.labeledSet[k]; ok {
			continue
		}
		p.remainingSet[k] = struct{}{}
		p.remaining = append(p.remaining, k)
	}

	p.lastAdded = slices.Clone(p.labeled)
	for _, k := range p.lastAdded {
		if rs, ok := p.regions[k]; ok {
			p.lastAddedRegions[k] = slices.Clone(rs)
		}
	}
	return p, nil
}

func (p *Pool) fullRegion() core.Region {
	return core.FullRegion(p.width, p.height)
}

// ExpandTrainingSet 把 keys 从 remaining 移到 labeled，并记为 lastAdded。
// 先整体校验再修改：任何 key 不在 remaining（或重复）都返回 INVARIANT_VIOLATION 且池不变。
func (p *Pool) ExpandTrainingSet(keys []core.ImageKey) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[core.ImageKey]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := p.remainingSet[k]; !ok {
			return core.Errorf(core.ModulePool, core.ErrorCodeInvariantViolation,
				"pool: expand with key %q which is not in the remaining pool", k)
		}
		if _, dup := seen[k]; dup {
			return core.Errorf(core.ModulePool, core.ErrorCodeInvariantViolation,
				"pool: expand with duplicate key %q", k)
		}
		seen[k] = struct{}{}
	}

	p.moveToLabeled(seen)
	p.labeled = append(p.labeled, keys...)
	p.lastAdded = slices.Clone(keys)
	clear(p.lastAddedRegions)
	if p.regionBased {
		for _, k := range keys {
			p.regions[k] = []core.Region{p.fullRegion()}
			p.lastAddedRegions[k] = []core.Region{p.fullRegion()}
		}
	}
	return nil
}

// ExpandRegions 是区域模式下的扩充：未标注的 key 移入 labeled，已标注的 key 追加区域。
// 区域按插入顺序保存，完全相同的区域只记录一次。
func (p *Pool) ExpandRegions(selections []core.RegionSelection) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.regionBased {
		return core.NewDomainError(core.ModulePool, core.ErrorCodeInvalidInput, "pool: region expansion on an image-level pool")
	}

	seen := make(map[core.ImageKey]struct{}, len(selections))
	moved := make(map[core.ImageKey]struct{})
	for _, sel := range selections {
		_, remaining := p.remainingSet[sel.Key]
		_, labeled := p.labeledSet[sel.Key]
		if !remaining && !labeled {
			return core.Errorf(core.ModulePool, core.ErrorCodeInvariantViolation,
				"pool: region expansion with unknown key %q", sel.Key)
		}
		if _, dup := seen[sel.Key]; dup {
			return core.Errorf(core.ModulePool, core.ErrorCodeInvariantViolation,
				"pool: region expansion lists key %q twice", sel.Key)
		}
		seen[sel.Key] = struct{}{}
		if len(sel.Regions) == 0 {
			return core.Errorf(core.ModulePool, core.ErrorCodeInvalidInput, "pool: no regions for key %q", sel.Key)
		}
		for _, r := range sel.Regions {
			if !r.Valid() {
				return core.Errorf(core.ModulePool, core.ErrorCodeInvalidInput, "pool: invalid region %s for key %q", r, sel.Key)
			}
		}
		if remaining {
			moved[sel.Key] = struct{}{}
		}
	}

	p.moveToLabeled(moved)
	clear(p.lastAddedRegions)
	p.lastAdded = p.lastAdded[:0:0]
	for _, sel := range selections {
		if _, ok := moved[sel.Key]; ok {
			p.labeled = append(p.labeled, sel.Key)
		}
		for _, r := range sel.Regions {
			if !slices.Contains(p.regions[sel.Key], r) {
				p.regions[sel.Key] = append(p.regions[sel.Key], r)
			}
		}
		p.lastAdded = append(p.lastAdded, sel.Key)
		p.lastAddedRegions[sel.Key] = slices.Clone(sel.Regions)
	}
	return nil
}

// moveToLabeled 从 remaining 中删除 keys 并登记到 labeledSet（不追加 labeled 切片）。
// 获得真值的 key 不再保留伪标注。调用方持有写锁。
func (p *Pool) moveToLabeled(keys map[core.ImageKey]struct{}) {
	if len(keys) == 0 {
		return
	}
	p.remaining = slices.DeleteFunc(p.remaining, func(k core.ImageKey) bool {
		_, ok := keys[k]
		return ok
	})
	for k := range keys {
		delete(p.remainingSet, k)
		p.labeledSet[k] = struct{}{}
	}
	if len(p.weak) > 0 {
		p.weak = slices.DeleteFunc(p.weak, func(w core.WeakLabel) bool {
			_, ok := keys[w.Key]
			return ok
		})
		p.reindexWeak()
	}
}

// CountExpandsNeeded 返回 ceil(|remaining| / batchSize)；batchSize <= 0 时返回 0。
func (p *Pool) CountExpandsNeeded(batchSize int) int {
	if batchSize <= 0 {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return (len(p.remaining) + batchSize - 1) / batchSize
}

// ReplicateTrainingSet 让 lastAdded 在一个 epoch 中出现 factor 次（只影响视图，不改 labeled）。
func (p *Pool) ReplicateTrainingSet(factor int) error {
	if factor < 1 {
		return core.Errorf(core.ModulePool, core.ErrorCodeInvalidInput, "pool: replicate factor must be >= 1, got %d", factor)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replicate = factor
	return nil
}

// ResetReplicatedTrainingSet 撤销 ReplicateTrainingSet，视图恢复为复制前的顺序与内容。
func (p *Pool) ResetReplicatedTrainingSet() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replicate = 1
}

// EpochReplicateFactor 返回让 lastAdded 填满一个与 labeled 等长 epoch 所需的倍数。
func (p *Pool) EpochReplicateFactor() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.lastAdded) == 0 {
		return 1
	}
	return max(1, int(math.Ceil(float64(len(p.labeled))/float64(len(p.lastAdded)))))
}

// AddWeakLabels 安装伪标注，替换之前的全部伪标注。已标注的 key 不能再有伪标注。
func (p *Pool) AddWeakLabels(labels []core.WeakLabel) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[core.ImageKey]struct{}, len(labels))
	for _, w := range labels {
		if _, ok := p.labeledSet[w.Key]; ok {
			return core.Errorf(core.ModulePool, core.ErrorCodeInvariantViolation,
				"pool: weak label for already labeled key %q", w.Key)
		}
		if _, ok := p.remainingSet[w.Key]; !ok {
			return core.Errorf(core.ModulePool, core.ErrorCodeInvariantViolation,
				"pool: weak label for unknown key %q", w.Key)
		}
		if _, dup := seen[w.Key]; dup {
			return core.Errorf(core.ModulePool, core.ErrorCodeInvariantViolation,
				"pool: duplicate weak label for key %q", w.Key)
		}
		if w.Label == nil {
			return core.Errorf(core.ModulePool, core.ErrorCodeInvalidInput, "pool: nil weak label for key %q", w.Key)
		}
		seen[w.Key] = struct{}{}
	}
	p.weak = slices.Clone(labels)
	p.reindexWeak()
	return nil
}

// ClearWeakLabels 删除全部伪标注。
func (p *Pool) ClearWeakLabels() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.weak = nil
	clear(p.weakIndex)
}

func (p *Pool) reindexWeak() {
	clear(p.weakIndex)
	for i, w := range p.weak {
		p.weakIndex[w.Key] = i
	}
}

// WeakLabel 返回 key 的伪标注。
func (p *Pool) WeakLabel(key core.ImageKey) (*core.LabelMap, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i, ok := p.weakIndex[key]
	if !ok {
		return nil, false
	}
	return p.weak[i].Label, true
}

// SetMode 切换训练视图。
func (p *Pool) SetMode(mode Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
}

func (p *Pool) Mode() Mode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mode
}

// Entries 返回当前训练视图的快照：
// 基础集合（labeled 或 lastAdded），加上 lastAdded 的 replicate-1 份副本，最后是伪标注样本。
func (p *Pool) Entries() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	base, baseRegions := p.labeled, p.regions
	if p.mode == ModeLastAddedBatch {
		base, baseRegions = p.lastAdded, p.lastAddedRegions
	}

	out := make([]Entry, 0, len(base)+(p.replicate-1)*len(p.lastAdded)+len(p.weak))
	for _, k := range base {
		out = append(out, Entry{Key: k, Regions: p.entryRegions(baseRegions, k)})
	}
	for r := 1; r < p.replicate; r++ {
		for _, k := range p.lastAdded {
			out = append(out, Entry{Key: k, Regions: p.entryRegions(p.lastAddedRegions, k)})
		}
	}
	for _, w := range p.weak {
		out = append(out, Entry{Key: w.Key, Weak: true})
	}
	return out
}

func (p *Pool) entryRegions(src map[core.ImageKey][]core.Region, key core.ImageKey) []core.Region {
	if !p.regionBased {
		return nil
	}
	return slices.Clone(src[key])
}

// Len 返回训练视图的长度。
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := len(p.labeled)
	if p.mode == ModeLastAddedBatch {
		n = len(p.lastAdded)
	}
	return n + (p.replicate-1)*len(p.lastAdded) + len(p.weak)
}

// Labeled 返回已标注 key 的副本。
func (p *Pool) Labeled() []core.ImageKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.labeled)
}

// Remaining 返回未标注 key 的副本（选择策略的候选快照）。
func (p *Pool) Remaining() []core.ImageKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.remaining)
}

// LastAdded 返回最近一次扩充的 key 的副本。
func (p *Pool) LastAdded() []core.ImageKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.lastAdded)
}

// RegionBased 表示是否为区域标注模式。
func (p *Pool) RegionBased() bool {
	return p.regionBased
}

// Regions 返回所有已标注区域的深拷贝。
func (p *Pool) Regions() map[core.ImageKey][]core.Region {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[core.ImageKey][]core.Region, len(p.regions))
	for k, rs := range p.regions {
		out[k] = slices.Clone(rs)
	}
	return out
}

// LabeledPixelCount 返回已标注的像素总数（区域模式按区域面积累加，否则按整图计）。
func (p *Pool) LabeledPixelCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.regionBased {
		return len(p.labeled) * p.width * p.height
	}
	total := 0
	for _, rs := range p.regions {
		for _, r := range rs {
			total += r.Area()
		}
	}
	return total
}

// FullyLabeled 表示样本池已无可标注的内容：整图模式下 remaining 为空，区域模式下全部像素已覆盖。
func (p *Pool) FullyLabeled() bool {
	if !p.regionBased {
		p.mu.RLock()
		defer p.mu.RUnlock()
		return len(p.remaining) == 0
	}
	return p.LabeledPixelCount() >= p.total*p.width*p.height
}

// Total 返回样本全集大小（|labeled| + |remaining| 恒等于它）。
func (p *Pool) Total() int {
	return p.total
}

// Validate 检查样本池的不变量。
func (p *Pool) Validate() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, k := range p.labeled {
		if _, ok := p.remainingSet[k]; ok {
			return core.Errorf(core.ModulePool, core.ErrorCodeInvariantViolation, "pool: key %q is both labeled and remaining", k)
		}
	}
	if len(p.labeled)+len(p.remaining) != p.total {
		return core.Errorf(core.ModulePool, core.ErrorCodeInvariantViolation,
			"pool: %d labeled + %d remaining != %d total", len(p.labeled), len(p.remaining), p.total)
	}
	for _, w := range p.weak {
		if _, ok := p.labeledSet[w.Key]; ok {
			return core.Errorf(core.ModulePool, core.ErrorCodeInvariantViolation, "pool: weakly labeled key %q is labeled", w.Key)
		}
	}
	return nil
}
