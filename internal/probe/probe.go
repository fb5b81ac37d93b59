// Package probe sends ICMP echo requests to check that a target is reachable
// over IPv4 and IPv6. Raw ICMP sockets usually need privileges; callers are
// expected to log a failed probe and move on.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Family is an address family
type Family string

const (
	IPv4 Family = "ipv4"
	IPv6 Family = "ipv6"
)

// IANA protocol numbers used by icmp.ParseMessage
const (
	protoICMP   = 1
	protoICMPv6 = 58
)

// Target is one address to probe
type Target struct {
	Address string
	Family  Family
}

// DefaultTargets are a private IPv4 gateway and an IPv6 documentation address
var DefaultTargets = []Target{
	{Address: "192.168.1.1", Family: IPv4},
	{Address: "2001:db8::1", Family: IPv6},
}

// Result is the outcome of probing one target
type Result struct {
	Target  string
	Family  Family
	Sent    bool
	Replied bool
	RTT     time.Duration
	Err     error
}

// ListenFunc opens a packet connection for network ("ip4:icmp" or
// "ip6:ipv6-icmp") bound to address.
type ListenFunc func(network, address string) (net.PacketConn, error)

// Prober sends one echo request per target
type Prober struct {
	Targets []Target
	Timeout time.Duration
	ID      int
	Payload []byte
	Listen  ListenFunc
}

// New returns a Prober for targets using raw ICMP sockets
func New(targets []Target, timeout time.Duration) *Prober {
	if len(targets) == 0 {
		targets = DefaultTargets
	}
	return &Prober{
		Targets: targets,
		Timeout: timeout,
		ID:      os.Getpid() & 0xffff,
		Payload: []byte("natsim-probe"),
		Listen:  listenICMP,
	}
}

func listenICMP(network, address string) (net.PacketConn, error) {
	return icmp.ListenPacket(network, address)
}

// Run probes every target in order. It never fails as a whole; per-target
// errors are reported on each Result as ResourceProbeFailure.
func (p *Prober) Run(ctx context.Context) []Result {
	results := make([]Result, 0, len(p.Targets))
	for i, t := range p.Targets {
		res := p.probe(ctx, t, i+1)
		if res.Err != nil {
			res.Err = &models.ResourceProbeFailure{Resource: "icmp " + t.Address, Err: res.Err}
		}
		results = append(results, res)
	}
	return results
}

func (p *Prober) probe(ctx context.Context, t Target, seq int) Result {
	res := Result{Target: t.Address, Family: t.Family}

	network, bind, proto := "ip4:icmp", "0.0.0.0", protoICMP
	if t.Family == IPv6 {
		network, bind, proto = "ip6:ipv6-icmp", "::", protoICMPv6
	}

	ip := net.ParseIP(t.Address)
	if ip == nil {
		res.Err = fmt.Errorf("invalid address %q", t.Address)
		return res
	}

	msg, err := EncodeEcho(t.Family, p.ID, seq, p.Payload)
	if err != nil {
		res.Err = err
		return res
	}

	conn, err := p.Listen(network, bind)
	if err != nil {
		res.Err = fmt.Errorf("open %s socket: %w", network, err)
		return res
	}
	defer conn.Close()

	deadline := time.Now().Add(p.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		res.Err = err
		return res
	}

	start := time.Now()
	if _, err := conn.WriteTo(msg, &net.IPAddr{IP: ip}); err != nil {
		res.Err = fmt.Errorf("send echo: %w", err)
		return res
	}
	res.Sent = true

	buf := make([]byte, 1500)
	for {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			res.Err = fmt.Errorf("await reply: %w", err)
			return res
		}
		if isReply(proto, buf[:n], p.ID, seq) {
			res.Replied = true
			res.RTT = time.Since(start)
			return res
		}
	}
}

// EncodeEcho builds an ICMP echo request. IPv4 messages carry their
// checksum; the kernel fills in the ICMPv6 checksum.
func EncodeEcho(family Family, id, seq int, payload []byte) ([]byte, error) {
	switch family {
	case IPv4:
		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{ComputeChecksums: true}
		echo := &layers.ICMPv4{
			TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
			Id:       uint16(id),
			Seq:      uint16(seq),
		}
		if err := gopacket.SerializeLayers(buf, opts, echo, gopacket.Payload(payload)); err != nil {
			return nil, fmt.Errorf("serialize icmpv4 echo: %w", err)
		}
		return buf.Bytes(), nil
	case IPv6:
		msg := icmp.Message{
			Type: ipv6.ICMPTypeEchoRequest,
			Body: &icmp.Echo{ID: id, Seq: seq, Data: payload},
		}
		return msg.Marshal(nil)
	}
	return nil, fmt.Errorf("unknown address family %q", family)
}

func isReply(proto int, data []byte, id, seq int) bool {
	msg, err := icmp.ParseMessage(proto, data)
	if err != nil {
		return false
	}
	if msg.Type != ipv4.ICMPTypeEchoReply && msg.Type != ipv6.ICMPTypeEchoReply {
		return false
	}
	echo, ok := msg.Body.(*icmp.Echo)
	return ok && echo.ID == id && echo.Seq == seq
}

// PermissionDenied reports whether err comes from missing raw socket
// privileges.
func PermissionDenied(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES)
}
