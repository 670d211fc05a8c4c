// 版权所有 2024 Cortex Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package telemetry 封装 OpenTelemetry SDK 初始化：OTLP gRPC 导出 trace 与 metric，
// 注册全局 TracerProvider、MeterProvider 与 W3C 传播器。
// 关闭时使用 noop 实现，不连接任何外部服务。
package telemetry
