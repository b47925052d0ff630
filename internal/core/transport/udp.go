package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-dice/internal/util/logger"
	"github.com/dep2p/go-dice/pkg/types"
)

var log = logger.Logger("transport")

// UDPConfig UDP 传输配置
type UDPConfig struct {
	// ListenAddrs 监听地址，例如 "0.0.0.0:4000"、"[::]:4000"，每个地址族至多一个
	ListenAddrs []string

	// QueueSize 入站队列长度，满时丢弃新数据报
	QueueSize int

	// ReadBufferSize 单个数据报的读缓冲大小
	ReadBufferSize int
}

// DefaultUDPConfig 默认配置
func DefaultUDPConfig() UDPConfig {
	return UDPConfig{
		ListenAddrs:    []string{"0.0.0.0:0"},
		QueueSize:      1024,
		ReadBufferSize: 64 * 1024,
	}
}

// UDP 基于 net.UDPConn 的传输
type UDP struct {
	conns   map[types.IPFamily]*net.UDPConn
	packets chan Packet

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

var _ Transport = (*UDP)(nil)

// ListenUDP 在配置的地址上监听
func ListenUDP(cfg UDPConfig) (*UDP, error) {
	if len(cfg.ListenAddrs) == 0 {
		return nil, ErrNoListenAddrs
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultUDPConfig().QueueSize
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultUDPConfig().ReadBufferSize
	}

	t := &UDP{
		conns:   make(map[types.IPFamily]*net.UDPConn),
		packets: make(chan Packet, cfg.QueueSize),
		closed:  make(chan struct{}),
	}

	for _, s := range cfg.ListenAddrs {
		laddr, err := net.ResolveUDPAddr("udp", s)
		if err != nil {
			t.closeConns()
			return nil, fmt.Errorf("transport: resolve %q: %w", s, err)
		}
		family, network := types.IPv4, "udp4"
		if laddr.IP != nil && laddr.IP.To4() == nil {
			family, network = types.IPv6, "udp6"
		}
		if _, dup := t.conns[family]; dup {
			t.closeConns()
			return nil, fmt.Errorf("transport: duplicate %s listen address %q", family, s)
		}
		conn, err := net.ListenUDP(network, laddr)
		if err != nil {
			t.closeConns()
			return nil, fmt.Errorf("transport: listen %q: %w", s, err)
		}
		t.conns[family] = conn
		log.Info("udp listening", "addr", conn.LocalAddr().String())
	}

	for _, conn := range t.conns {
		t.wg.Add(1)
		go t.readLoop(conn, cfg.ReadBufferSize)
	}
	go func() {
		t.wg.Wait()
		close(t.packets)
	}()
	return t, nil
}

func (t *UDP) readLoop(conn *net.UDPConn, bufSize int) {
	defer t.wg.Done()
	buf := make([]byte, bufSize)
	for {
		n, from, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Debug("udp read failed", "err", err)
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case t.packets <- Packet{Data: data, From: types.NetworkAddressFromAddrPort(from)}:
		case <-t.closed:
			return
		default:
			log.Debug("inbound queue full, dropping datagram", "from", from.String())
		}
	}
}

// Send 发送数据报
func (t *UDP) Send(ctx context.Context, data []byte, to types.NetworkAddress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	if !to.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, to)
	}
	conn, ok := t.conns[to.Family()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoListener, to.Family())
	}
	_, err := conn.WriteToUDPAddrPort(data, to.AddrPort())
	return err
}

// Packets 入站数据报
func (t *UDP) Packets() <-chan Packet {
	return t.packets
}

// LocalAddrs 实际监听地址
func (t *UDP) LocalAddrs() []types.NetworkAddress {
	out := make([]types.NetworkAddress, 0, len(t.conns))
	for _, family := range []types.IPFamily{types.IPv4, types.IPv6} {
		if conn, ok := t.conns[family]; ok {
			out = append(out, types.NetworkAddressFromUDP(conn.LocalAddr().(*net.UDPAddr)))
		}
	}
	return out
}

// Close 关闭全部 socket
func (t *UDP) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.closeConns()
		t.wg.Wait()
	})
	return err
}

func (t *UDP) closeConns() error {
	var err error
	for _, conn := range t.conns {
		err = multierr.Append(err, conn.Close())
	}
	return err
}
