// Package config 提供 Cortex 的配置管理。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加，环境变量键名为
// CORTEX_<SECTION>_<FIELD>，可选地先从 .env 文件注入。
package config
