// Package store 提供 core.Store 的实现以及样本 blob 的编解码。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
// 示例：
//
//	var s core.Store = store.NewMemoryStore()
//	samples := store.NewSampleStore(s, "samples/")
//	sample, err := samples.Sample(ctx, "aachen/aachen_000000_000019")
package store
