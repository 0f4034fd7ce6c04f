// Package moabcache provides a two-tier object cache: a cost/count bounded
// in-memory LRU in front of a per-name directory on disk.
//
// A Manager owns the process-wide table of live instances. Opening the same
// (root kind, name) twice yields handles over one shared instance, so writes
// through either handle are visible through the other. Values cross the disk
// boundary through a Codec; persistence is asynchronous and best-effort, with
// failures delivered to an ErrorObserver instead of the caller.
//
//	m, _ := moabcache.NewManager(moabcache.ManagerOptions{Resolver: rootdir.Fixed("/var/lib/app")})
//	images, _ := moabcache.Open(m, "images", rootdir.Caches, moabcache.BytesCodec{}, moabcache.Options{MaxMemoryCountLimit: 128})
//	_ = images.SetObject("avatar", data)
//	data, ok := images.ObjectForKey("avatar")
package moabcache
