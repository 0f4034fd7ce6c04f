package moabcache

// Options 只在实例首次创建时生效；再次打开同名实例会复用既有配置。
type Options struct {
	// MaxMemoryCost 为内存层总成本上限，0 表示不限制。
	MaxMemoryCost int64
	// MaxMemoryCountLimit 为内存层条目数上限，0 表示不限制。
	MaxMemoryCountLimit int
	// ErrorObserver 接收异步磁盘故障，为空时仅记录日志。
	ErrorObserver ErrorObserver
}

// Stats 是某一时刻的实例快照。
type Stats struct {
	MemoryCost          int64 `json:"memory_cost"`
	MemoryCount         int   `json:"memory_count"`
	MaxMemoryCost       int64 `json:"max_memory_cost"`
	MaxMemoryCountLimit int   `json:"max_memory_count_limit"`
	PendingWrites       int   `json:"pending_writes"`
}
