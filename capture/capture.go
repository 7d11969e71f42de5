// Package capture reads ICMP packets from a live interface or a capture file
// and reduces them to observations for feature extraction.
package capture

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/rs/zerolog"

	"github.com/Zerofisher/icmpwatch/internal/logging"
	"github.com/Zerofisher/icmpwatch/pkg/model"
)

// DefaultFilter restricts capture to ICMP traffic.
const DefaultFilter = "icmp"

const (
	snapLen = 65536

	// readTimeout bounds each blocking read so Stop is observed promptly.
	readTimeout = 500 * time.Millisecond
)

// Source produces observations until stopped or exhausted.
type Source interface {
	Start() <-chan model.Observation
	Stop()
}

// Capturer handles packet capture from interface or file
type Capturer struct {
	handle   *pcap.Handle
	obsChan  chan model.Observation
	stopChan chan struct{}
	stopOnce sync.Once
	isLive   bool
	counter  int
	skipped  int
	realtime bool
	recorder *PcapWriter
	log      zerolog.Logger
}

var _ Source = (*Capturer)(nil)

// ListInterfaces returns available network interfaces
func ListInterfaces() ([]pcap.Interface, error) {
	return pcap.FindAllDevs()
}

// DefaultInterface picks the first non-loopback device with an address,
// falling back to the "any" pseudo-device.
func DefaultInterface() (string, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}
	for _, d := range devs {
		if isLoopback(d) || len(d.Addresses) == 0 {
			continue
		}
		return d.Name, nil
	}
	return "any", nil
}

func isLoopback(d pcap.Interface) bool {
	if strings.HasPrefix(d.Name, "lo") {
		return true
	}
	for _, a := range d.Addresses {
		if a.IP.IsLoopback() {
			return true
		}
	}
	return false
}

// NewLiveCapturer creates a capturer for live interface
func NewLiveCapturer(iface string, filter string) (*Capturer, error) {
	handle, err := pcap.OpenLive(iface, snapLen, true, readTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open interface %s: %w", iface, err)
	}

	if err := applyFilter(handle, filter); err != nil {
		handle.Close()
		return nil, err
	}

	return newCapturer(handle, true), nil
}

// NewFileCapturer creates a capturer for pcap file
func NewFileCapturer(filename string, filter string) (*Capturer, error) {
	handle, err := pcap.OpenOffline(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}

	if err := applyFilter(handle, filter); err != nil {
		handle.Close()
		return nil, err
	}

	return newCapturer(handle, false), nil
}

func newCapturer(handle *pcap.Handle, live bool) *Capturer {
	return &Capturer{
		handle:   handle,
		obsChan:  make(chan model.Observation, 1000),
		stopChan: make(chan struct{}),
		isLive:   live,
		log:      logging.Component("capture"),
	}
}

func applyFilter(handle *pcap.Handle, filter string) error {
	if filter == "" {
		return nil
	}
	if err := handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("failed to set BPF filter %q: %w", filter, err)
	}
	return nil
}

// SetRealtime makes file replay sleep between packets so it reproduces the
// original inter-arrival times. It has no effect on live capture.
func (c *Capturer) SetRealtime(on bool) {
	c.realtime = on
}

// SetRecorder copies every decoded ICMP packet to w.
func (c *Capturer) SetRecorder(w *PcapWriter) {
	c.recorder = w
}

// IsLive reports whether the capturer reads from an interface.
func (c *Capturer) IsLive() bool {
	return c.isLive
}

// LinkType returns the link type of the underlying handle.
func (c *Capturer) LinkType() layers.LinkType {
	return c.handle.LinkType()
}

// Stats returns kernel capture counters for live capture.
func (c *Capturer) Stats() (*pcap.Stats, error) {
	if !c.isLive {
		return nil, fmt.Errorf("stats unavailable for file capture")
	}
	return c.handle.Stats()
}

// Start begins packet capture. The channel closes when the source is
// exhausted or Stop is called.
func (c *Capturer) Start() <-chan model.Observation {
	go c.captureLoop()
	return c.obsChan
}

// Stop stops the capture. It is safe to call more than once.
func (c *Capturer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

func (c *Capturer) captureLoop() {
	defer close(c.obsChan)
	defer c.closeHandle()

	packetSource := gopacket.NewPacketSource(c.handle, c.handle.LinkType())
	packetSource.NoCopy = true

	var pacer replayPacer

	for {
		select {
		case <-c.stopChan:
			return
		case packet, ok := <-packetSource.Packets():
			if !ok {
				c.log.Debug().Int("icmp", c.counter).Int("skipped", c.skipped).Msg("capture source exhausted")
				return
			}

			obs, ok := Decode(packet)
			if !ok {
				c.skipped++
				continue
			}
			c.counter++
			obs.Number = c.counter

			if c.recorder != nil {
				if err := c.recorder.WritePacket(packet); err != nil {
					c.log.Warn().Err(err).Msg("record packet")
				}
			}

			if c.realtime && !c.isLive {
				if !pacer.wait(obs.Timestamp, c.stopChan) {
					return
				}
			}

			select {
			case c.obsChan <- obs:
			case <-c.stopChan:
				return
			}
		}
	}
}

func (c *Capturer) closeHandle() {
	if c.isLive {
		if st, err := c.Stats(); err == nil {
			c.log.Info().
				Int("received", st.PacketsReceived).
				Int("dropped", st.PacketsDropped).
				Int("if_dropped", st.PacketsIfDropped).
				Msg("capture statistics")
		}
	}
	c.handle.Close()
}

// Decode extracts an observation from an ICMPv4 or ICMPv6 packet. It returns
// false for anything else. An ICMP packet without a decodable IP header is
// returned with HasTTL unset.
func Decode(packet gopacket.Packet) (model.Observation, bool) {
	obs := model.Observation{Timestamp: packet.Metadata().Timestamp}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now()
	}

	switch {
	case packet.Layer(layers.LayerTypeICMPv4) != nil:
		icmp := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
		obs.ICMPType = icmp.TypeCode.Type()
		obs.ICMPCode = icmp.TypeCode.Code()
	case packet.Layer(layers.LayerTypeICMPv6) != nil:
		icmp := packet.Layer(layers.LayerTypeICMPv6).(*layers.ICMPv6)
		obs.ICMPType = icmp.TypeCode.Type()
		obs.ICMPCode = icmp.TypeCode.Code()
		obs.V6 = true
	default:
		return obs, false
	}

	// The outermost IP header carries the TTL the packet arrived with.
	if ipLayer := packet.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		ip := ipLayer.(*layers.IPv4)
		obs.TTL = int(ip.TTL)
		obs.HasTTL = true
		obs.SrcIP = ip.SrcIP.String()
		obs.DstIP = ip.DstIP.String()
	} else if ipLayer := packet.Layer(layers.LayerTypeIPv6); ipLayer != nil {
		ip := ipLayer.(*layers.IPv6)
		obs.TTL = int(ip.HopLimit)
		obs.HasTTL = true
		obs.SrcIP = ip.SrcIP.String()
		obs.DstIP = ip.DstIP.String()
	}

	return obs, true
}

// replayPacer maps capture timestamps onto wall-clock time.
type replayPacer struct {
	first time.Time
	start time.Time
}

// wait sleeps until ts is due. It returns false if stop closed first.
func (p *replayPacer) wait(ts time.Time, stop <-chan struct{}) bool {
	if p.start.IsZero() {
		p.first = ts
		p.start = time.Now()
		return true
	}
	delay := time.Until(p.start.Add(ts.Sub(p.first)))
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	}
}
