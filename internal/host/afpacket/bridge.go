//go:build linux

// Package afpacket bridges real network interfaces through the switch
// using AF_PACKET sockets.
package afpacket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/gopacket/afpacket"
	"golang.org/x/sync/errgroup"

	"firestige.xyz/lswitch/internal/log"
	"firestige.xyz/lswitch/internal/switching/engine"
	"firestige.xyz/lswitch/internal/switching/frame"
)

type Options struct {
	SnapLen     int
	PollTimeout time.Duration
	QueueDepth  int
}

type port struct {
	id     int
	name   string
	hwAddr net.HardwareAddr
	handle *afpacket.TPacket
}

type received struct {
	ifc int
	raw []byte
}

// Bridge owns one socket per interface and is the engine's Transmitter.
// Reader goroutines only queue frames; a single goroutine runs the engine.
type Bridge struct {
	ports  []*port
	opts   Options
	logger log.Logger
}

// Open binds a socket to each named interface; interface k is names[k-1].
func Open(names []string, opts Options, logger log.Logger) (*Bridge, error) {
	b := &Bridge{opts: opts, logger: logger}
	filter, err := ingressOnly(opts.SnapLen)
	if err != nil {
		return nil, fmt.Errorf("assemble socket filter: %w", err)
	}
	frameSize, blockSize, numBlocks := ringSize(opts.SnapLen, os.Getpagesize())

	for i, name := range names {
		nic, err := net.InterfaceByName(name)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to get interface %s: %w", name, err)
		}
		tp, err := afpacket.NewTPacket(
			afpacket.OptInterface(nic.Name),
			afpacket.OptFrameSize(frameSize),
			afpacket.OptBlockSize(blockSize),
			afpacket.OptNumBlocks(numBlocks),
			afpacket.OptPollTimeout(opts.PollTimeout),
			afpacket.SocketRaw,
			afpacket.TPacketVersion3,
		)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to create TPacket on %s: %w", name, err)
		}
		if err := tp.SetBPF(filter); err != nil {
			tp.Close()
			b.Close()
			return nil, fmt.Errorf("failed to set socket filter on %s: %w", name, err)
		}
		b.ports = append(b.ports, &port{id: i + 1, name: nic.Name, hwAddr: nic.HardwareAddr, handle: tp})

		logger.WithFields(map[string]interface{}{
			"ifc":     i + 1,
			"name":    nic.Name,
			"mtu":     nic.MTU,
			"hw_addr": nic.HardwareAddr.String(),
		}).Info("port opened")
	}
	return b, nil
}

// Transmit writes raw on port ifc. A failed write drops the frame on that
// port only; a live link hiccup must not stop the bridge.
func (b *Bridge) Transmit(ifc int, raw []byte) error {
	if ifc < 1 || ifc > len(b.ports) {
		return fmt.Errorf("no port %d", ifc)
	}
	p := b.ports[ifc-1]
	if err := p.handle.WritePacketData(raw); err != nil {
		b.logger.WithError(err).WithField("ifc", ifc).Warn("transmit failed, frame dropped on this port")
	}
	return nil
}

// Announce passes each port's hardware address to the engine.
func (b *Bridge) Announce(e *engine.Engine) error {
	for _, p := range b.ports {
		mac, err := frame.MACFromBytes(p.hwAddr)
		if err != nil {
			b.logger.WithField("ifc", p.id).Warnf("%s has no Ethernet address, not announced", p.name)
			continue
		}
		if err := e.AnnounceMAC(p.id, mac); err != nil {
			return err
		}
	}
	return nil
}

// Run bridges until ctx is cancelled (nil) or the engine fails.
func (b *Bridge) Run(ctx context.Context, e *engine.Engine) error {
	queue := make(chan received, b.opts.QueueDepth)
	g, gctx := errgroup.WithContext(ctx)

	for _, p := range b.ports {
		g.Go(func() error { return b.read(gctx, p, queue) })
	}
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case r := <-queue:
				if _, err := e.DeliverFrame(r.ifc, r.raw); err != nil {
					return err
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (b *Bridge) read(ctx context.Context, p *port, queue chan<- received) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, _, err := p.handle.ReadPacketData()
		if errors.Is(err, afpacket.ErrTimeout) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", p.name, err)
		}
		select {
		case queue <- received{ifc: p.id, raw: data}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Bridge) Close() {
	for _, p := range b.ports {
		p.handle.Close()
	}
}
