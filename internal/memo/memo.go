// Package memo implements the AEAD-encrypted payload a transaction
// attaches to its outputs so that scanning a recipient's spend-key
// seed against every transaction on chain recovers the accounts and
// notes it owns (spec.md §6). Shared keys are derived via ECDH on the
// same embedded twisted-Edwards curve internal/keys signs with;
// symmetric encryption is ChaCha20-Poly1305 with a fixed nonce, since
// every key is used to encrypt exactly one message.
package memo

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	tedwards "github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ccoin/core/internal/params"
)

// ErrMalformed is returned by Decode when the wire bytes cannot be a
// valid envelope (spec.md §6 "Serialisation malformed" edge case).
var ErrMalformed = errors.New("memo: malformed payload")

// ErrNotForMe is returned by Open when no AEAD tag validates under the
// supplied key: the expected outcome when scanning someone else's
// memo, not a protocol error (spec.md §6 "Encryption mismatch").
var ErrNotForMe = errors.New("memo: payload does not decrypt under this key")

// nonce is fixed: the first 12 bytes of Keccak("ZeroPool") (spec.md
// §6). Reuse is safe only because every key this package derives is
// single-use — a fresh ECDH shared point per envelope, a fresh
// per-item sub-key per envelope via domain-separated derivation.
var nonce = [chacha20poly1305.NonceSize]byte{0x5b, 0xbd, 0xff, 0xc6, 0xfe, 0x73, 0xc4, 0x60, 0xf1, 0xb2, 0xb8, 0x5d}

const (
	labelKeyWrap uint64 = 1
	labelAccount uint64 = 2
	labelNote    uint64 = 3
)

func curve() tedwards.CurveParams {
	return tedwards.GetEdwardsCurve()
}

// deriveKey folds the ECDH shared x-coordinate, a role label, and an
// item index into a ChaCha20-Poly1305 key via the sponge parameter
// family, giving every account/note slot an independent key from a
// single shared point (spec.md §6).
func deriveKey(sharedX fr.Element, label, index uint64) ([chacha20poly1305.KeySize]byte, error) {
	var labelElem, indexElem fr.Element
	labelElem.SetUint64(label)
	indexElem.SetUint64(index)
	k, err := params.HashRole(params.RoleSponge, sharedX, labelElem, indexElem)
	if err != nil {
		return [chacha20poly1305.KeySize]byte{}, err
	}
	return k.Bytes(), nil
}

func seal(key [chacha20poly1305.KeySize]byte, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce[:], plaintext, nil), nil
}

func open(key [chacha20poly1305.KeySize]byte, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, ErrNotForMe
	}
	return pt, nil
}

// Envelope is the decoded form of a transaction's memo field: the
// commitments it announces in clear, an ephemeral public key for
// ECDH, and the layered AEAD ciphertexts a recipient peels to recover
// its account/note plaintexts (spec.md §6). The ephemeral key is
// carried as a full (x, y) pair rather than the spec's bare
// shared_a_pub_x, since recovering y from x on the embedded curve
// needs a sign bit this format otherwise has no room for — the same
// widening internal/circuits.TransferCircuit applies to the EdDSA
// witness (see DESIGN.md).
type Envelope struct {
	AccountHash fr.Element
	NoteHashes  []fr.Element
	EphemeralX  fr.Element
	EphemeralY  fr.Element
	KeyWrap     []byte // AEAD(keyWrapKey, accountKey || noteKeys...)
	AccountCT   []byte // AEAD(accountKey, account payload)
	NoteCTs     [][]byte
}

// Seal builds a memo envelope encrypting accountPayload and
// notePayloads for the recipient's public key recipientA, under a
// freshly sampled ephemeral scalar (spec.md §6). accountHash and
// noteHashes are carried in clear so a scanner can cheaply check
// candidate commitments before attempting any decryption.
func Seal(recipientA tedwards.PointAffine, accountHash fr.Element, noteHashes []fr.Element, accountPayload []byte, notePayloads [][]byte) (*Envelope, error) {
	c := curve()
	r, err := rand.Int(rand.Reader, &c.Order)
	if err != nil {
		return nil, err
	}

	var shared tedwards.PointAffine
	shared.ScalarMultiplication(&recipientA, r)

	var ephemeral tedwards.PointAffine
	ephemeral.ScalarMultiplication(&c.Base, r)

	accountKey, err := deriveKey(shared.X, labelAccount, 0)
	if err != nil {
		return nil, err
	}
	keyWrapKey, err := deriveKey(shared.X, labelKeyWrap, 0)
	if err != nil {
		return nil, err
	}

	noteKeys := make([][chacha20poly1305.KeySize]byte, len(notePayloads))
	keysBlob := make([]byte, 0, chacha20poly1305.KeySize*(len(notePayloads)+1))
	keysBlob = append(keysBlob, accountKey[:]...)
	for i := range notePayloads {
		nk, err := deriveKey(shared.X, labelNote, uint64(i))
		if err != nil {
			return nil, err
		}
		noteKeys[i] = nk
		keysBlob = append(keysBlob, nk[:]...)
	}

	keyWrapCT, err := seal(keyWrapKey, keysBlob)
	if err != nil {
		return nil, err
	}
	accountCT, err := seal(accountKey, accountPayload)
	if err != nil {
		return nil, err
	}

	noteCTs := make([][]byte, len(notePayloads))
	for i, p := range notePayloads {
		ct, err := seal(noteKeys[i], p)
		if err != nil {
			return nil, err
		}
		noteCTs[i] = ct
	}

	return &Envelope{
		AccountHash: accountHash,
		NoteHashes:  append([]fr.Element(nil), noteHashes...),
		EphemeralX:  ephemeral.X,
		EphemeralY:  ephemeral.Y,
		KeyWrap:     keyWrapCT,
		AccountCT:   accountCT,
		NoteCTs:     noteCTs,
	}, nil
}

// Open decrypts an envelope addressed with spend-key seed sigma,
// returning the decrypted account and note payloads. Any AEAD
// failure is reported as ErrNotForMe (spec.md §6 point 3): that is
// the ordinary "not owned" outcome a wallet expects while scanning,
// not a distinguishable protocol error.
func Open(env *Envelope, sigma *big.Int) ([]byte, [][]byte, error) {
	var ephemeral tedwards.PointAffine
	ephemeral.X = env.EphemeralX
	ephemeral.Y = env.EphemeralY

	var shared tedwards.PointAffine
	shared.ScalarMultiplication(&ephemeral, sigma)

	keyWrapKey, err := deriveKey(shared.X, labelKeyWrap, 0)
	if err != nil {
		return nil, nil, err
	}
	keysBlob, err := open(keyWrapKey, env.KeyWrap)
	if err != nil {
		return nil, nil, err
	}
	if len(keysBlob) != chacha20poly1305.KeySize*(len(env.NoteCTs)+1) {
		return nil, nil, ErrMalformed
	}

	var accountKey [chacha20poly1305.KeySize]byte
	copy(accountKey[:], keysBlob[:chacha20poly1305.KeySize])
	accountPayload, err := open(accountKey, env.AccountCT)
	if err != nil {
		return nil, nil, err
	}

	notePayloads := make([][]byte, len(env.NoteCTs))
	for i, ct := range env.NoteCTs {
		var nk [chacha20poly1305.KeySize]byte
		off := chacha20poly1305.KeySize * (i + 1)
		copy(nk[:], keysBlob[off:off+chacha20poly1305.KeySize])
		pt, err := open(nk, ct)
		if err != nil {
			return nil, nil, err
		}
		notePayloads[i] = pt
	}

	return accountPayload, notePayloads, nil
}

// Encode serializes an envelope to its wire form: a u32 note count,
// the clear commitments, the ephemeral public key, then the
// length-prefixed ciphertext blocks: the key wrap, the account, and one
// per note (spec.md §6).
func (e *Envelope) Encode() []byte {
	buf := make([]byte, 0, 256)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(e.NoteHashes)))

	accountHashBytes := e.AccountHash.Bytes()
	buf = append(buf, accountHashBytes[:]...)
	for _, h := range e.NoteHashes {
		hb := h.Bytes()
		buf = append(buf, hb[:]...)
	}

	exBytes := e.EphemeralX.Bytes()
	eyBytes := e.EphemeralY.Bytes()
	buf = append(buf, exBytes[:]...)
	buf = append(buf, eyBytes[:]...)

	buf = appendLenPrefixed(buf, e.KeyWrap)
	buf = appendLenPrefixed(buf, e.AccountCT)
	for _, ct := range e.NoteCTs {
		buf = appendLenPrefixed(buf, ct)
	}
	return buf
}

func appendLenPrefixed(buf, payload []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

// Decode parses the wire form Encode produces. A truncated or
// otherwise malformed input returns ErrMalformed (spec.md §6
// "Serialisation malformed").
func Decode(data []byte) (*Envelope, error) {
	d := &decoder{buf: data}

	count, err := d.readU32()
	if err != nil {
		return nil, err
	}
	accountHash, err := d.readField()
	if err != nil {
		return nil, err
	}
	noteHashes := make([]fr.Element, count)
	for i := range noteHashes {
		noteHashes[i], err = d.readField()
		if err != nil {
			return nil, err
		}
	}
	ephemeralX, err := d.readField()
	if err != nil {
		return nil, err
	}
	ephemeralY, err := d.readField()
	if err != nil {
		return nil, err
	}
	keyWrap, err := d.readLenPrefixed()
	if err != nil {
		return nil, err
	}
	accountCT, err := d.readLenPrefixed()
	if err != nil {
		return nil, err
	}
	var noteCTs [][]byte
	for d.remaining() > 0 {
		ct, err := d.readLenPrefixed()
		if err != nil {
			return nil, err
		}
		noteCTs = append(noteCTs, ct)
	}

	return &Envelope{
		AccountHash: accountHash,
		NoteHashes:  noteHashes,
		EphemeralX:  ephemeralX,
		EphemeralY:  ephemeralY,
		KeyWrap:     keyWrap,
		AccountCT:   accountCT,
		NoteCTs:     noteCTs,
	}, nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) remaining() int { return len(d.buf) - d.off }

func (d *decoder) readN(n int) ([]byte, error) {
	if d.remaining() < n {
		return nil, ErrMalformed
	}
	out := d.buf[d.off : d.off+n]
	d.off += n
	return out, nil
}

func (d *decoder) readU32() (uint32, error) {
	b, err := d.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) readField() (fr.Element, error) {
	b, err := d.readN(fr.Bytes)
	if err != nil {
		return fr.Element{}, err
	}
	var e fr.Element
	e.SetBytes(b)
	return e, nil
}

func (d *decoder) readLenPrefixed() ([]byte, error) {
	n, err := d.readU32()
	if err != nil {
		return nil, err
	}
	b, err := d.readN(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}
