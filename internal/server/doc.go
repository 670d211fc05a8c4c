// 版权所有 2024 Cortex Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 cmd/cortex 的监听端口（API 与 Prometheus 指标各一个 Manager）。

# 核心类型

  - Manager：持有 http.Server 与 listener，Start 非阻塞，Shutdown 幂等，
    WaitForShutdown 等待 SIGINT/SIGTERM 或服务异常退出。
  - Config：名称、地址、各类超时、请求头上限与可选的 TLS 证书。

配置了证书与私钥时使用 tlsutil.DefaultTLSConfig 以 HTTPS 提供服务。
Addr 在启动后返回实际监听地址，便于测试使用 ":0"。
*/
package server
