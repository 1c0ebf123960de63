package capture

// Packet capture of an explicit messaging session. Encapsulation frames are
// written as synthetic Ethernet/IPv4/TCP packets so standard tools can
// dissect them on port 44818.

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const (
	// ENIPPort is the TCP port written for the device side.
	ENIPPort = 44818
	// ClientPort is the TCP port written for the originator side.
	ClientPort = 50000

	snapLen = 262144
	mss     = 1460
)

// Direction of a captured frame.
type Direction int

const (
	ToDevice Direction = iota
	FromDevice
)

func (d Direction) String() string {
	if d == ToDevice {
		return "to-device"
	}
	return "from-device"
}

var (
	clientMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	deviceMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}

	defaultClientIP = net.IPv4(10, 0, 0, 1).To4()
	defaultDeviceIP = net.IPv4(10, 0, 0, 2).To4()
)

// Writer emits frames into a pcap stream. It keeps one TCP sequence number
// per direction so the stream reassembles cleanly.
type Writer struct {
	mu       sync.Mutex
	w        *pcapgo.Writer
	closer   io.Closer
	clientIP net.IP
	deviceIP net.IP
	seq      [2]uint32
	packets  int
	now      func() time.Time
}

// NewWriter writes the pcap file header to w.
func NewWriter(w io.Writer) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Writer{
		w:        pw,
		clientIP: defaultClientIP,
		deviceIP: defaultDeviceIP,
		seq:      [2]uint32{1000, 5000},
		now:      time.Now,
	}, nil
}

// Create opens path and returns a Writer that closes it on Close.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcap file: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// SetDevice sets the device address written into IPv4 headers. Hosts that
// are not IPv4 literals keep the default.
func (w *Writer) SetDevice(host string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ip := net.ParseIP(host).To4(); ip != nil {
		w.deviceIP = ip
	}
}

// Packets returns the number of packets written.
func (w *Writer) Packets() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.packets
}

// WriteFrame writes one encapsulation frame, split into MSS-sized segments.
func (w *Writer) WriteFrame(dir Direction, frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for off := 0; off < len(frame); off += mss {
		end := min(off+mss, len(frame))
		if err := w.writeSegment(dir, frame[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeSegment(dir Direction, payload []byte) error {
	eth := &layers.Ethernet{
		SrcMAC:       clientMAC,
		DstMAC:       deviceMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    w.clientIP,
		DstIP:    w.deviceIP,
	}
	tcp := &layers.TCP{
		SrcPort: ClientPort,
		DstPort: ENIPPort,
		Seq:     w.seq[dir],
		Ack:     w.seq[1-dir],
		ACK:     true,
		PSH:     true,
		Window:  65535,
	}
	if dir == FromDevice {
		eth.SrcMAC, eth.DstMAC = eth.DstMAC, eth.SrcMAC
		ip.SrcIP, ip.DstIP = ip.DstIP, ip.SrcIP
		tcp.SrcPort, tcp.DstPort = tcp.DstPort, tcp.SrcPort
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return fmt.Errorf("tcp checksum layer: %w", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("serialize packet: %w", err)
	}
	data := buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: w.now(), CaptureLength: len(data), Length: len(data)}
	if err := w.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	w.seq[dir] += uint32(len(payload))
	w.packets++
	return nil
}

// Close closes the underlying file when the Writer owns one.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
