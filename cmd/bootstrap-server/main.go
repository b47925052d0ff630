// Package main 提供独立的引导节点
//
// 引导节点是一个公网可达、强制为 Direct 的长期运行节点：新节点向它询问
// 外部地址、从它获取最近节点，并由它为 NAT 后的节点转发 punch 与 relay。
//
// 使用方法:
//
//	bootstrap-server -listen 0.0.0.0:4000 -public-addr 203.0.113.7:4000
//
// 多个引导节点互相引导：
//
//	bootstrap-server -public-addr 203.0.113.7:4000 -peers 203.0.113.8:4000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dep2p/go-dice"
	"github.com/dep2p/go-dice/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("❌ 错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	listen := flag.String("listen", "0.0.0.0:4000", "监听地址")
	publicAddr := flag.String("public-addr", "", "公网地址（必需）")
	peers := flag.String("peers", "", "其他引导节点，逗号分隔")
	dataDir := flag.String("data-dir", ".dice-bootstrap", "数据目录")
	metricsAddr := flag.String("metrics", "", "指标监听地址，例如 0.0.0.0:9100")
	statsInterval := flag.Duration("stats", 30*time.Second, "统计输出间隔，0 表示不输出")
	flag.Parse()

	if *publicAddr == "" {
		return errors.New("必须指定 -public-addr")
	}

	cfg := config.Default()
	if err := config.ApplyPreset(cfg, "bootstrap"); err != nil {
		return err
	}
	cfg.Transport.ListenAddrs = []string{*listen}
	cfg.NAT.PublicAddrs = []string{*publicAddr}
	cfg.Storage.DataDir = *dataDir
	cfg.Metrics.ListenAddr = *metricsAddr
	for _, p := range strings.Split(*peers, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cfg.Overlay.BootstrapPeers = append(cfg.Overlay.BootstrapPeers, p)
		}
	}

	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║            dice Bootstrap Server                     ║")
	fmt.Println("╚══════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	peer, err := dice.Start(ctx, dice.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("启动引导节点失败: %w", err)
	}
	defer func() { _ = peer.Close() }()

	printServerInfo(peer)

	if h := peer.MetricsHandler(); h != nil && *metricsAddr != "" {
		srv := &http.Server{Addr: *metricsAddr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Printf("指标服务退出: %v\n", err)
			}
		}()
		defer srv.Close()
	}

	if *statsInterval > 0 {
		go reportStats(ctx, peer, *statsInterval)
	}

	<-ctx.Done()
	fmt.Println("\n正在关闭引导节点...")
	return nil
}

func printServerInfo(peer *dice.Peer) {
	cfg := peer.Config()
	fmt.Printf("节点地址: %s\n", peer.Address())
	fmt.Printf("公网地址: %s\n", strings.Join(cfg.NAT.PublicAddrs, ", "))
	if len(cfg.Overlay.BootstrapPeers) > 0 {
		fmt.Printf("其他引导: %s\n", strings.Join(cfg.Overlay.BootstrapPeers, ", "))
	}
	fmt.Println()
	fmt.Println("客户端可以使用以下参数加入覆盖网络:")
	for _, a := range cfg.NAT.PublicAddrs {
		fmt.Printf("  dice run -bootstrap %s\n", a)
	}
	fmt.Println()
	fmt.Println("按 Ctrl+C 停止")
}

// reportStats 定期输出路由表大小
func reportStats(ctx context.Context, peer *dice.Peer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Printf("[Stats] 路由表节点数: %d\n", peer.Table().Size())
		}
	}
}
