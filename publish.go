package sigmadaq

// Publish decoded sample blocks and state-change messages over ZMQ PUB
// sockets, so clients can follow a capture without linking the driver.

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	zmq "github.com/pebbe/zmq4"

	"github.com/probelab/sigmadaq/getbytes"
)

// StatusUpdate carries one message for the status port.
type StatusUpdate struct {
	Tag   string
	State interface{} // JSON-encoded for publication; exported fields only
}

// SessionStatus is the State payload of the session lifecycle messages.
type SessionStatus struct {
	Serial     string
	SessionID  string
	State      string
	SampleRate uint64
	Samples    uint64
}

// RunStatusPublisher forwards updates from its input channel to a ZMQ PUB
// socket as 2-frame messages {tag, JSON}. It returns when abort closes.
func RunStatusPublisher(updates <-chan StatusUpdate, portstatus int, abort <-chan struct{}) error {
	pubSocket, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return fmt.Errorf("opening status PUB socket: %w", err)
	}
	defer pubSocket.Close()
	if err := pubSocket.Bind(fmt.Sprintf("tcp://*:%d", portstatus)); err != nil {
		return fmt.Errorf("binding status port %d: %w", portstatus, err)
	}

	for {
		select {
		case <-abort:
			return nil
		case update := <-updates:
			message, err := json.Marshal(update.State)
			if err != nil {
				ProblemLogger.Printf("cannot encode %q update: %v", update.Tag, err)
				continue
			}
			UpdateLogger.Printf("%s %s", update.Tag, message)
			if _, err := pubSocket.SendMessage(update.Tag, message); err != nil {
				ProblemLogger.Printf("cannot publish %q update: %v", update.Tag, err)
			}
		}
	}
}

// PublishBlocks forwards sample blocks to a ZMQ PUB socket until abort
// closes. Each block is a 3-frame message: session ID, a fixed header, and
// the raw sample words.
func PublishBlocks(blocks <-chan *SampleBlock, portnum int, abort <-chan struct{}) error {
	pubSocket, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return fmt.Errorf("opening sample PUB socket: %w", err)
	}
	defer pubSocket.Close()
	if err := pubSocket.Bind(fmt.Sprintf("tcp://*:%d", portnum)); err != nil {
		return fmt.Errorf("binding sample port %d: %w", portnum, err)
	}

	for {
		select {
		case <-abort:
			return nil
		case block := <-blocks:
			frames := [][]byte{
				[]byte(block.SessionID),
				blockHeader(block),
				getbytes.FromSliceUint16(block.Words),
			}
			if _, err := pubSocket.SendMessage(frames[0], frames[1], frames[2]); err != nil {
				ProblemLogger.Printf("cannot publish sample block: %v", err)
			}
		}
	}
}

// blockHeader renders the 13-byte wire header:
// {first-sample index: 8B LE, word count: 4B LE, final flag: 1B}.
func blockHeader(block *SampleBlock) []byte {
	hdr := make([]byte, 13)
	binary.LittleEndian.PutUint64(hdr[0:], block.FirstIndex)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(block.Words)))
	if block.Final {
		hdr[12] = 1
	}
	return hdr
}
