// Package p2p provides message serialization for network communication.
package p2p

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/ccoin/core/internal/circuits"
	"github.com/ccoin/core/internal/memo"
)

// Message types
const (
	MsgTypeTransaction uint8 = 0x01
	MsgTypeMemo        uint8 = 0x02
	MsgTypeGetAnchor   uint8 = 0x10
	MsgTypeStatus      uint8 = 0x20
	MsgTypePing        uint8 = 0x30
	MsgTypePong        uint8 = 0x31
)

// Message errors
var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooLarge    = errors.New("message too large")
	ErrTruncatedMessage   = errors.New("truncated message")
)

// MaxMessageSize is the maximum size of a network message. A transfer
// proof plus its OUT+1 commitment leaves and an attached memo envelope
// comfortably fit well under this.
const MaxMessageSize = 1 * 1024 * 1024 // 1 MiB

// Message is the length-prefixed envelope every gossip frame travels
// in, mirroring the teacher's original wire framing.
type Message struct {
	Type    uint8
	Payload []byte
}

// Encode serializes a message for network transmission.
func (m *Message) Encode(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, m.Type); err != nil {
		return err
	}
	payloadLen := uint32(len(m.Payload))
	if err := binary.Write(w, binary.BigEndian, payloadLen); err != nil {
		return err
	}
	_, err := w.Write(m.Payload)
	return err
}

// Decode deserializes a message from network data.
func (m *Message) Decode(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &m.Type); err != nil {
		return err
	}
	var payloadLen uint32
	if err := binary.Read(r, binary.BigEndian, &payloadLen); err != nil {
		return err
	}
	if payloadLen > MaxMessageSize {
		return ErrMessageTooLarge
	}
	m.Payload = make([]byte, payloadLen)
	_, err := io.ReadFull(r, m.Payload)
	return err
}

// StatusMessage exchanges node status: peers gossip their view of the
// pool's current anchor so a joining node knows who is ahead.
type StatusMessage struct {
	Version     uint32
	NetworkID   uint32
	TreeSize    uint64
	CurrentRoot fr.Element
}

// EncodeStatus serializes a status message.
func EncodeStatus(status *StatusMessage) []byte {
	buf := make([]byte, 0, 4+4+8+fr.Bytes)
	buf = binary.BigEndian.AppendUint32(buf, status.Version)
	buf = binary.BigEndian.AppendUint32(buf, status.NetworkID)
	buf = binary.BigEndian.AppendUint64(buf, status.TreeSize)
	rootBytes := status.CurrentRoot.Bytes()
	buf = append(buf, rootBytes[:]...)
	return buf
}

// DecodeStatus deserializes a status message.
func DecodeStatus(data []byte) (*StatusMessage, error) {
	const fixedLen = 4 + 4 + 8 + fr.Bytes
	if len(data) < fixedLen {
		return nil, ErrTruncatedMessage
	}
	status := &StatusMessage{
		Version:   binary.BigEndian.Uint32(data[0:4]),
		NetworkID: binary.BigEndian.Uint32(data[4:8]),
		TreeSize:  binary.BigEndian.Uint64(data[8:16]),
	}
	status.CurrentRoot.SetBytes(data[16 : 16+fr.Bytes])
	return status, nil
}

// EncodeTransaction serializes a shielded transaction's public fields,
// proof, and output leaves for gossip (spec.md §6). The witness itself
// never travels the wire; only what a verifying peer needs to.
func EncodeTransaction(root, nullifierVal, outCommit, delta fr.Element, outLeaves []fr.Element, proofBytes, publicInputs []byte) []byte {
	buf := make([]byte, 0, 4*fr.Bytes+len(outLeaves)*fr.Bytes+8+len(proofBytes)+8+len(publicInputs))

	appendElem := func(e fr.Element) {
		b := e.Bytes()
		buf = append(buf, b[:]...)
	}
	appendElem(root)
	appendElem(nullifierVal)
	appendElem(outCommit)
	appendElem(delta)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(outLeaves)))
	for _, leaf := range outLeaves {
		appendElem(leaf)
	}

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(proofBytes)))
	buf = append(buf, proofBytes...)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(publicInputs)))
	buf = append(buf, publicInputs...)

	return buf
}

// DecodedTransaction is the result of decoding a gossiped transaction
// frame, before its proof has been checked against a circuit kind.
type DecodedTransaction struct {
	Root          fr.Element
	Nullifier     fr.Element
	OutCommitment fr.Element
	Delta         fr.Element
	OutLeaves     []fr.Element
	ProofBytes    []byte
	PublicInputs  []byte
}

// DecodeTransaction parses a frame produced by EncodeTransaction.
func DecodeTransaction(data []byte) (*DecodedTransaction, error) {
	readElem := func() (fr.Element, error) {
		if len(data) < fr.Bytes {
			return fr.Element{}, ErrTruncatedMessage
		}
		var e fr.Element
		e.SetBytes(data[:fr.Bytes])
		data = data[fr.Bytes:]
		return e, nil
	}
	readUint32 := func() (uint32, error) {
		if len(data) < 4 {
			return 0, ErrTruncatedMessage
		}
		v := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		return v, nil
	}

	var dt DecodedTransaction
	var err error
	if dt.Root, err = readElem(); err != nil {
		return nil, err
	}
	if dt.Nullifier, err = readElem(); err != nil {
		return nil, err
	}
	if dt.OutCommitment, err = readElem(); err != nil {
		return nil, err
	}
	if dt.Delta, err = readElem(); err != nil {
		return nil, err
	}

	leafCount, err := readUint32()
	if err != nil {
		return nil, err
	}
	if leafCount > circuits.OutPlusOne {
		return nil, ErrMessageTooLarge
	}
	dt.OutLeaves = make([]fr.Element, leafCount)
	for i := range dt.OutLeaves {
		if dt.OutLeaves[i], err = readElem(); err != nil {
			return nil, err
		}
	}

	proofLen, err := readUint32()
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) < proofLen {
		return nil, ErrTruncatedMessage
	}
	dt.ProofBytes = data[:proofLen]
	data = data[proofLen:]

	inputsLen, err := readUint32()
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) < inputsLen {
		return nil, ErrTruncatedMessage
	}
	dt.PublicInputs = data[:inputsLen]

	return &dt, nil
}

// EncodeMemo serializes a memo envelope for gossip alongside its
// transaction so a recipient scanning the network can trial-decrypt it.
func EncodeMemo(env *memo.Envelope) []byte {
	return env.Encode()
}

// DecodeMemo parses a memo envelope frame.
func DecodeMemo(data []byte) (*memo.Envelope, error) {
	return memo.Decode(data)
}
