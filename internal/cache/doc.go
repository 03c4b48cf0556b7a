// Package cache 管理磁盘上的 YAML 数据文件：Directory 负责扫描目录并按逻辑名
// 缓存 File，File 在内存中保存每个键最近一次读取的值，以及读取时数据文件的
// ModTime。每次读取都会比较当前 ModTime 与记录值，不一致即视为过期并从已解析
// 的文档重新取值，从而在不整体重载的前提下感知外部修改。
//
// 所有 I/O 失败都会记录一次日志并以 error 返回，不做任何重试；只有目标路径
// 类型错误（目录/文件混淆）会让构造直接失败。
package cache
