// Package network gossips marketplace transactions and blocks between nodes
// over TCP, as length-prefixed JSON frames.
package network

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
)

// maxFrameBytes caps a single inbound frame. Blocks carry at most a few
// hundred transactions, so anything near this size is garbage or abuse.
const maxFrameBytes = 32 * 1024 * 1024

// MsgType labels a network message.
type MsgType string

const (
	MsgHello     MsgType = "hello"      // peer introduction, triggers block sync
	MsgTx        MsgType = "tx"         // a signed marketplace transaction
	MsgBlock     MsgType = "block"      // a freshly produced block
	MsgGetBlocks MsgType = "get_blocks" // request for a block range
	MsgBlocks    MsgType = "blocks"     // batch answer to get_blocks
)

// Message is the envelope every frame carries.
type Message struct {
	Type    MsgType         `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Peer is one remote node. Send is safe for concurrent use; Receive is
// expected to be driven by a single read loop.
type Peer struct {
	ID   string
	Addr string

	conn   net.Conn
	mu     sync.Mutex
	closed bool
}

// NewPeer wraps an established connection.
func NewPeer(id, addr string, conn net.Conn) *Peer {
	return &Peer{ID: id, Addr: addr, conn: conn}
}

// Connect dials addr and returns the connected peer.
func Connect(id, addr string) (*Peer, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return NewPeer(id, addr, conn), nil
}

// Send marshals msg and writes it as one frame.
func (p *Peer) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("peer %s closed", p.ID)
	}
	return p.writeFrame(data)
}

func (p *Peer) writeFrame(data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := p.conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := p.conn.Write(data)
	return err
}

// Receive blocks until the next frame arrives and unmarshals it.
func (p *Peer) Receive() (Message, error) {
	data, err := p.readFrame()
	if err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("malformed frame from %s: %w", p.ID, err)
	}
	return msg, nil
}

func (p *Peer) readFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(p.conn, lenBuf[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if size > maxFrameBytes {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(p.conn, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Close tears down the connection. Safe to call more than once.
func (p *Peer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.conn.Close()
	}
}
