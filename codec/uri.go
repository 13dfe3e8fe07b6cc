package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	stderr "github.com/pkg/errors"

	"github.com/oasislabs/signing-gateway/errors"
)

const (
	// ProtocolVersion is the version of the request encoding
	ProtocolVersion uint8 = 2

	compressedFlag uint8 = 0x80

	// maxPayloadSize bounds the size of an inflated request
	maxPayloadSize = 1 << 20

	checksumLen = 4

	chainIDAlias uint8 = 0
	chainIDFull  uint8 = 1
)

// DefaultSchemes are the schemes accepted when none are configured
var DefaultSchemes = []string{"esr", "web+esr"}

func malformed(cause error) error {
	return errors.New(errors.ErrMalformedRequest, cause)
}

// SplitScheme separates the scheme of uri from its payload. The
// scheme must be one of schemes
func SplitScheme(uri string, schemes []string) (string, string, error) {
	i := strings.IndexByte(uri, ':')
	if i <= 0 {
		return "", "", errors.Newf(errors.ErrUnrecognizedScheme, "uri has no scheme")
	}

	scheme := uri[:i]
	for _, allowed := range schemes {
		if strings.EqualFold(scheme, allowed) {
			return strings.ToLower(scheme), strings.TrimPrefix(uri[i+1:], "//"), nil
		}
	}

	return "", "", errors.Newf(errors.ErrUnrecognizedScheme, "scheme %q is not allowed", scheme)
}

// Decode parses a signing request URI. The scheme of the URI must be
// one of schemes
func Decode(uri string, schemes []string) (*Request, error) {
	_, payload, err := SplitScheme(strings.TrimSpace(uri), schemes)
	if err != nil {
		return nil, err
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(payload, "="))
	if err != nil {
		return nil, malformed(stderr.Wrap(err, "invalid base64 payload"))
	}
	if len(data) < 1 {
		return nil, malformed(stderr.New("empty payload"))
	}

	header := data[0]
	if version := header &^ compressedFlag; version != ProtocolVersion {
		return nil, malformed(stderr.Errorf("unsupported protocol version %d", version))
	}

	body := data[1:]
	if header&compressedFlag != 0 {
		if body, err = inflate(body); err != nil {
			return nil, malformed(err)
		}
	}

	if len(body) < checksumLen {
		return nil, malformed(ErrShortBuffer)
	}

	body, checksum := body[:len(body)-checksumLen], body[len(body)-checksumLen:]
	sum := sha256.Sum256(body)
	if !bytes.Equal(sum[:checksumLen], checksum) {
		return nil, malformed(stderr.New("checksum mismatch"))
	}

	req, err := decodeBody(body)
	if err != nil {
		return nil, malformed(err)
	}

	return req, nil
}

// Encode serializes req into a signing request URI
func Encode(req *Request, scheme string, compress bool) (string, error) {
	body, err := encodeBody(req)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(body)
	body = append(body, sum[:checksumLen]...)

	header := ProtocolVersion
	if compress {
		header |= compressedFlag
		if body, err = deflate(body); err != nil {
			return "", err
		}
	}

	data := append([]byte{header}, body...)
	return scheme + ":" + base64.RawURLEncoding.EncodeToString(data), nil
}

func inflate(b []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(b))
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxPayloadSize+1))
	if err != nil {
		return nil, stderr.Wrap(err, "invalid compressed payload")
	}
	if len(out) > maxPayloadSize {
		return nil, stderr.New("payload too large")
	}

	return out, nil
}

func deflate(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, stderr.WithStack(err)
	}
	if _, err := w.Write(b); err != nil {
		return nil, stderr.WithStack(err)
	}
	if err := w.Close(); err != nil {
		return nil, stderr.WithStack(err)
	}

	return buf.Bytes(), nil
}

func encodeBody(req *Request) ([]byte, error) {
	var w Writer

	if alias, ok := chainAlias(req.ChainID); ok {
		w.WriteUint8(chainIDAlias)
		w.WriteUint8(alias)
	} else {
		w.WriteUint8(chainIDFull)
		w.WriteRaw(req.ChainID[:])
	}

	w.WriteUint8(uint8(req.Kind))
	switch req.Kind {
	case KindAction:
		if len(req.Actions) != 1 {
			return nil, stderr.Errorf("action request must have exactly one action, has %d", len(req.Actions))
		}
		writeAction(&w, &req.Actions[0])
	case KindActions:
		writeActions(&w, req.Actions)
	case KindTransaction:
		tx := Transaction{Actions: req.Actions}
		if req.Header != nil {
			tx.TransactionHeader = *req.Header
		}
		w.WriteRaw(tx.Pack())
	case KindIdentity:
		if req.IdentityPermission == nil {
			w.WriteUint8(0)
		} else {
			w.WriteUint8(1)
			writePermissionLevel(&w, *req.IdentityPermission)
		}
	default:
		return nil, stderr.Errorf("unknown request kind %d", req.Kind)
	}

	var flags uint8
	if req.Broadcast {
		flags |= FlagBroadcast
	}
	if req.Background {
		flags |= FlagBackground
	}
	w.WriteUint8(flags)
	w.WriteString(req.Callback)

	w.WriteVarUint32(uint32(len(req.Info)))
	for _, key := range req.infoKeys() {
		w.WriteString(key)
		w.WriteBytes([]byte(req.Info[key]))
	}

	return w.Bytes(), nil
}

func decodeBody(body []byte) (*Request, error) {
	r := NewReader(body)
	req := &Request{}

	tag, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case chainIDAlias:
		alias, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		id, ok := chainAliases[alias]
		if !ok {
			return nil, stderr.Errorf("unknown chain alias %d", alias)
		}
		req.ChainID = id
	case chainIDFull:
		b, err := r.ReadRaw(len(req.ChainID))
		if err != nil {
			return nil, err
		}
		copy(req.ChainID[:], b)
	default:
		return nil, stderr.Errorf("unknown chain id variant %d", tag)
	}

	kind, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	req.Kind = Kind(kind)

	switch req.Kind {
	case KindAction:
		a, err := readAction(r)
		if err != nil {
			return nil, err
		}
		req.Actions = []Action{a}
	case KindActions:
		if req.Actions, err = readActions(r); err != nil {
			return nil, err
		}
	case KindTransaction:
		header, err := readHeader(r)
		if err != nil {
			return nil, err
		}
		cfa, err := readActions(r)
		if err != nil {
			return nil, err
		}
		if len(cfa) > 0 {
			return nil, stderr.New("context free actions are not supported")
		}
		if req.Actions, err = readActions(r); err != nil {
			return nil, err
		}
		extensions, err := r.ReadVarUint32()
		if err != nil {
			return nil, err
		}
		if extensions > 0 {
			return nil, stderr.New("transaction extensions are not supported")
		}
		req.Header = header
	case KindIdentity:
		present, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		if present {
			p, err := readPermissionLevel(r)
			if err != nil {
				return nil, err
			}
			req.IdentityPermission = &p
		}
	default:
		return nil, stderr.Errorf("unknown request variant %d", kind)
	}

	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if flags&^(FlagBroadcast|FlagBackground) != 0 {
		return nil, stderr.Errorf("unknown request flags %#x", flags)
	}
	req.Broadcast = flags&FlagBroadcast != 0
	req.Background = flags&FlagBackground != 0

	if req.Callback, err = r.ReadString(); err != nil {
		return nil, err
	}

	count, err := r.ReadVarUint32()
	if err != nil {
		return nil, err
	}
	if int(count) > r.Remaining()/2 {
		return nil, ErrShortBuffer
	}
	if count > 0 {
		req.Info = make(map[string]string, count)
	}
	for i := uint32(0); i < count; i++ {
		key, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		value, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		req.Info[key] = string(value)
	}

	if r.Remaining() != 0 {
		return nil, stderr.Errorf("%d trailing bytes after request", r.Remaining())
	}

	if req.IsIdentity() && req.Broadcast {
		return nil, stderr.New("identity requests cannot be broadcast")
	}

	return req, nil
}
