// Package server 承载 Fiber HTTP 服务：请求 ID 中间件、panic 恢复，以及把
// config.toml 中声明的缓存实例装配为 Catalog，供 routes 包按名称查找。
// 依赖全部通过 AppOptions 显式注入，保持导出面尽量窄。
package server
