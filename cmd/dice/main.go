// Package main 提供 dice 命令行入口
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dep2p/go-dice"
	"github.com/dep2p/go-dice/config"
	"github.com/dep2p/go-dice/internal/core/keys"
	"github.com/dep2p/go-dice/internal/util/logger"
)

var log = logger.Logger("dice/cmd")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printHelp()
		return nil
	}
	switch args[0] {
	case "run":
		return cmdRun(args[1:])
	case "id":
		return cmdID(args[1:])
	case "send":
		return cmdSend(args[1:])
	case "ping":
		return cmdPing(args[1:])
	case "version", "-version", "--version":
		fmt.Println(dice.VersionInfo())
		return nil
	case "help", "-h", "-help", "--help":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("未知命令 %q", args[0])
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// run
// ═══════════════════════════════════════════════════════════════════════════

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configFile := fs.String("config", "", "配置文件路径")
	preset := fs.String("preset", "", "预设配置 (client/bootstrap/mobile)")
	dataDir := fs.String("data-dir", "", "数据目录")
	listen := fs.String("listen", "", "监听地址，逗号分隔")
	bootstrap := fs.String("bootstrap", "", "引导节点，逗号分隔")
	publicAddr := fs.String("public-addr", "", "公网地址，设置后强制为 Direct")
	metricsAddr := fs.String("metrics", "", "指标监听地址，例如 127.0.0.1:9100")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	if *listen != "" {
		cfg.Transport.ListenAddrs = splitAndTrim(*listen, ",")
	}
	if *bootstrap != "" {
		cfg.Overlay.BootstrapPeers = splitAndTrim(*bootstrap, ",")
	}
	if *publicAddr != "" {
		setPublicAddr(cfg, *publicAddr)
	}
	if *metricsAddr != "" {
		cfg.Metrics.ListenAddr = *metricsAddr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("📦 %s\n", dice.VersionInfo())
	peer, err := dice.Start(ctx, dice.WithConfig(cfg), dice.WithPreset(*preset))
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = peer.Close() }()

	printPeerInfo(peer)

	stopMetrics := serveMetrics(peer)
	defer stopMetrics()

	go printEvents(ctx, peer)

	fmt.Println("节点已启动，按 Ctrl+C 退出")
	<-ctx.Done()
	fmt.Println("\n正在关闭节点...")
	return nil
}

func printPeerInfo(peer *dice.Peer) {
	cfg := peer.Config()
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Printf("地址:     %s\n", peer.Address())
	fmt.Printf("监听:     %v\n", cfg.Transport.ListenAddrs)
	fmt.Printf("引导节点: %v\n", cfg.Overlay.BootstrapPeers)
	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr != "" {
		fmt.Printf("指标:     http://%s/metrics\n", cfg.Metrics.ListenAddr)
	}
	fmt.Println("═══════════════════════════════════════════════════════")
}

// printEvents 打印本节点记录变化、收到的数据与后台错误
func printEvents(ctx context.Context, peer *dice.Peer) {
	local, err := peer.Subscribe(new(dice.EvtLocalUpdated))
	if err != nil {
		return
	}
	defer local.Close()
	data, err := peer.Subscribe(new(dice.EvtData))
	if err != nil {
		return
	}
	defer data.Close()
	errs, err := peer.Subscribe(new(dice.EvtError))
	if err != nil {
		return
	}
	defer errs.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-local.Out():
			fmt.Printf("[local] %s\n", e.(dice.EvtLocalUpdated).Node)
		case e := <-data.Out():
			evt := e.(dice.EvtData)
			fmt.Printf("[data] %s relayed=%v: %s\n", evt.From.DiceAddress(), evt.Relayed, evt.Payload)
		case e := <-errs.Out():
			evt := e.(dice.EvtError)
			fmt.Printf("[error] %s: %v\n", evt.Op, evt.Err)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// id
// ═══════════════════════════════════════════════════════════════════════════

func cmdID(args []string) error {
	fs := flag.NewFlagSet("id", flag.ExitOnError)
	configFile := fs.String("config", "", "配置文件路径")
	dataDir := fs.String("data-dir", "", "数据目录")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	path := cfg.KeyPath()
	if path == "" {
		return errors.New("临时身份没有可显示的密钥文件")
	}
	k, err := keys.LoadOrGenerate(path)
	if err != nil {
		return err
	}
	pub := k.PublicKey()
	fmt.Printf("地址:     %s\n", k.DiceAddress())
	fmt.Printf("十六进制: %s\n", k.DiceAddress().Hex())
	fmt.Printf("公钥:     %x\n", pub[:])
	fmt.Printf("密钥文件: %s\n", path)
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// send / ping
// ═══════════════════════════════════════════════════════════════════════════

// oneShotConfig 一次性命令使用临时身份与随机端口，不运行健康检查
func oneShotConfig(fs *flag.FlagSet, args []string) (*config.Config, time.Duration, error) {
	configFile := fs.String("config", "", "配置文件路径")
	bootstrap := fs.String("bootstrap", "", "引导节点，逗号分隔")
	listen := fs.String("listen", "0.0.0.0:0", "监听地址")
	timeout := fs.Duration("timeout", 10*time.Second, "整体超时")
	if err := fs.Parse(args); err != nil {
		return nil, 0, err
	}
	cfg, err := loadConfig(*configFile)
	if err != nil {
		return nil, 0, err
	}
	cfg.Identity = config.IdentityConfig{Ephemeral: true}
	cfg.Transport.ListenAddrs = splitAndTrim(*listen, ",")
	cfg.Overlay.AutoBootstrap = false
	cfg.Healthcheck.NodeInterval = 0
	cfg.Healthcheck.OverlayInterval = 0
	cfg.Metrics.Enabled = false
	if *bootstrap != "" {
		cfg.Overlay.BootstrapPeers = splitAndTrim(*bootstrap, ",")
	}
	return cfg, *timeout, nil
}

func cmdSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	cfg, timeout, err := oneShotConfig(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("用法: dice send [选项] <地址> <文本>")
	}
	target, err := dice.ParseAddress(fs.Arg(0))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	peer, err := dice.Start(ctx, dice.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer peer.Close()

	if err := peer.Bootstrap(ctx); err != nil {
		return fmt.Errorf("引导失败: %w", err)
	}
	log.Debug("bootstrapped", "node", peer.Node().String())
	if err := peer.Send(ctx, target, []byte(fs.Arg(1))); err != nil {
		return err
	}
	fmt.Printf("已发送 %d 字节到 %s\n", len(fs.Arg(1)), target)
	return nil
}

func cmdPing(args []string) error {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	cfg, timeout, err := oneShotConfig(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("用法: dice ping [选项] <ip:port>")
	}
	addr, err := dice.ParseNetworkAddress(fs.Arg(0))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	peer, err := dice.Start(ctx, dice.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer peer.Close()

	start := time.Now()
	n, err := peer.PingAddress(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Printf("%s 来自 %s: time=%v\n", n, addr, time.Since(start).Round(time.Microsecond))
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// 指标
// ═══════════════════════════════════════════════════════════════════════════

// serveMetrics 在 Metrics.ListenAddr 上暴露 /metrics，返回停止函数
func serveMetrics(peer *dice.Peer) func() {
	cfg := peer.Config()
	h := peer.MetricsHandler()
	if h == nil || cfg.Metrics.ListenAddr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{
		Addr:              cfg.Metrics.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printHelp() {
	fmt.Println("dice - 穿透 NAT 的 UDP 覆盖网络节点")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  dice run   [-config f] [-preset p] [-data-dir d] [-listen a] [-bootstrap a,b] [-public-addr a] [-metrics a]")
	fmt.Println("  dice id    [-config f] [-data-dir d]")
	fmt.Println("  dice send  [-bootstrap a,b] [-timeout t] <地址> <文本>")
	fmt.Println("  dice ping  [-timeout t] <ip:port>")
	fmt.Println("  dice version")
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  DICE_CONFIG            配置文件路径")
	fmt.Println("  DICE_DATA_DIR          数据目录")
	fmt.Println("  DICE_LISTEN            监听地址（逗号分隔）")
	fmt.Println("  DICE_BOOTSTRAP_PEERS   引导节点（逗号分隔）")
	fmt.Println("  DICE_PUBLIC_ADDR       公网地址，设置后强制为 Direct")
	fmt.Println("  DICE_METRICS_ADDR      指标监听地址")
	fmt.Println("  DICE_LOG_LEVEL         日志级别，例如 info 或 socket=debug,table=warn")
	fmt.Println("  DICE_LOG_FORMAT        日志格式 text / json")
}
