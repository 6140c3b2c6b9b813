// Package store 提供 core.Store 的实现：内存、Redis、BoltDB。
//
// 此包只包含实现，接口定义在 core 包：
//
//	var s core.Store = store.NewMemoryStore()
//	s, err := store.NewStore(store.Config{Type: "bolt", Path: ".inferkit/results.db"})
package store
