package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PcapWriter records captured ICMP packets to a pcapng file
type PcapWriter struct {
	file     *os.File
	writer   *pcapgo.NgWriter
	mu       sync.Mutex
	count    int
	filename string
	closed   bool
}

// NewPcapWriter creates a pcapng writer for Ethernet frames
func NewPcapWriter(filename string) (*PcapWriter, error) {
	return NewPcapWriterWithLinkType(filename, layers.LinkTypeEthernet)
}

// NewPcapWriterWithLinkType creates a pcapng writer matching the capture link type
func NewPcapWriterWithLinkType(filename string, linkType layers.LinkType) (*PcapWriter, error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", filename, err)
	}

	writer, err := pcapgo.NewNgWriterInterface(file, pcapgo.NgInterface{
		Name:       "icmpwatch",
		LinkType:   linkType,
		SnapLength: snapLen,
	}, pcapgo.NgWriterOptions{
		SectionInfo: pcapgo.NgSectionInfo{
			Application: "icmpwatch",
		},
	})
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create pcapng writer: %w", err)
	}

	return &PcapWriter{
		file:     file,
		writer:   writer,
		filename: filename,
	}, nil
}

// WritePacket writes a single packet to the file
func (w *PcapWriter) WritePacket(pkt gopacket.Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	data := pkt.Data()
	if len(data) == 0 {
		return nil
	}

	md := pkt.Metadata()
	ci := gopacket.CaptureInfo{
		Timestamp:     md.Timestamp,
		CaptureLength: len(data),
		Length:        md.Length,
	}
	if ci.Length < ci.CaptureLength {
		ci.Length = ci.CaptureLength
	}

	if err := w.writer.WritePacket(ci, data); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}

	w.count++
	return nil
}

// Flush flushes any buffered data to disk
func (w *PcapWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	return w.writer.Flush()
}

// Close flushes and closes the underlying file
func (w *PcapWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush: %w", err)
	}

	return w.file.Close()
}

// Count returns the number of packets written
func (w *PcapWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Filename returns the output filename
func (w *PcapWriter) Filename() string {
	return w.filename
}

// GenerateFilename generates a unique filename with timestamp
func GenerateFilename(prefix string) string {
	ts := time.Now().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.pcapng", prefix, ts)
}
