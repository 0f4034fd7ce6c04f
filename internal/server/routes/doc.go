// Package routes 注册对象读写接口（/caches/:name/...）与 /-/ 下的管理接口。
package routes
