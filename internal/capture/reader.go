package capture

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/tonylturner/cipwire/internal/enip"
)

// Frame is one reassembled encapsulation frame.
type Frame struct {
	Direction Direction
	Timestamp time.Time
	Data      []byte
}

// ReadFile reads every encapsulation frame from a pcap file.
func ReadFile(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pcap: %w", err)
	}
	defer f.Close()
	return ReadFrames(f)
}

// ReadFrames reassembles TCP port 44818 payloads, per direction, into
// encapsulation frames in capture order.
func ReadFrames(r io.Reader) ([]Frame, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read pcap header: %w", err)
	}
	source := gopacket.NewPacketSource(reader, reader.LinkType())

	var (
		frames  []Frame
		streams [2][]byte
	)
	for packet := range source.Packets() {
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp, _ := tcpLayer.(*layers.TCP)
		var dir Direction
		switch {
		case tcp.DstPort == ENIPPort:
			dir = ToDevice
		case tcp.SrcPort == ENIPPort:
			dir = FromDevice
		default:
			continue
		}
		if len(tcp.Payload) == 0 {
			continue
		}
		streams[dir] = append(streams[dir], tcp.Payload...)
		for {
			total, ok := enip.FrameLength(streams[dir])
			if !ok || len(streams[dir]) < total {
				break
			}
			frames = append(frames, Frame{
				Direction: dir,
				Timestamp: packet.Metadata().Timestamp,
				Data:      append([]byte(nil), streams[dir][:total]...),
			})
			streams[dir] = streams[dir][total:]
		}
	}
	for dir, rest := range streams {
		if len(rest) != 0 {
			return frames, fmt.Errorf("%s stream ends with %d bytes of a partial frame", Direction(dir), len(rest))
		}
	}
	return frames, nil
}
