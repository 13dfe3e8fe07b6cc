package codec

import (
	stderr "github.com/pkg/errors"
)

// Extension is a transaction extension
type Extension struct {
	Type uint16
	Data []byte
}

// Transaction is a complete transaction ready to be packed
type Transaction struct {
	TransactionHeader
	ContextFreeActions []Action
	Actions            []Action
	Extensions         []Extension
}

// Pack serializes the transaction in the chain binary format
func (t *Transaction) Pack() []byte {
	var w Writer
	writeHeader(&w, &t.TransactionHeader)
	writeActions(&w, t.ContextFreeActions)
	writeActions(&w, t.Actions)
	w.WriteVarUint32(uint32(len(t.Extensions)))
	for _, ext := range t.Extensions {
		w.WriteUint16(ext.Type)
		w.WriteBytes(ext.Data)
	}
	return w.Bytes()
}

// UnpackTransaction is the inverse of Transaction.Pack
func UnpackTransaction(b []byte) (*Transaction, error) {
	r := NewReader(b)
	t := &Transaction{}

	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	t.TransactionHeader = *header

	if t.ContextFreeActions, err = readActions(r); err != nil {
		return nil, err
	}
	if t.Actions, err = readActions(r); err != nil {
		return nil, err
	}

	count, err := r.ReadVarUint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		var ext Extension
		if ext.Type, err = r.ReadUint16(); err != nil {
			return nil, err
		}
		if ext.Data, err = r.ReadBytes(); err != nil {
			return nil, err
		}
		t.Extensions = append(t.Extensions, ext)
	}

	if r.Remaining() != 0 {
		return nil, stderr.Errorf("%d trailing bytes after transaction", r.Remaining())
	}

	return t, nil
}

func writeHeader(w *Writer, h *TransactionHeader) {
	w.WriteUint32(h.Expiration)
	w.WriteUint16(h.RefBlockNum)
	w.WriteUint32(h.RefBlockPrefix)
	w.WriteVarUint32(h.MaxNetUsageWords)
	w.WriteUint8(h.MaxCPUUsageMs)
	w.WriteVarUint32(h.DelaySec)
}

func readHeader(r *Reader) (*TransactionHeader, error) {
	var (
		h   TransactionHeader
		err error
	)

	if h.Expiration, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if h.RefBlockNum, err = r.ReadUint16(); err != nil {
		return nil, err
	}
	if h.RefBlockPrefix, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if h.MaxNetUsageWords, err = r.ReadVarUint32(); err != nil {
		return nil, err
	}
	if h.MaxCPUUsageMs, err = r.ReadUint8(); err != nil {
		return nil, err
	}
	if h.DelaySec, err = r.ReadVarUint32(); err != nil {
		return nil, err
	}

	return &h, nil
}

func writePermissionLevel(w *Writer, p PermissionLevel) {
	w.WriteName(p.Actor)
	w.WriteName(p.Permission)
}

func readPermissionLevel(r *Reader) (PermissionLevel, error) {
	var (
		p   PermissionLevel
		err error
	)

	if p.Actor, err = r.ReadName(); err != nil {
		return p, err
	}
	p.Permission, err = r.ReadName()
	return p, err
}

func writeAction(w *Writer, a *Action) {
	w.WriteName(a.Account)
	w.WriteName(a.Name)
	w.WriteVarUint32(uint32(len(a.Authorization)))
	for _, auth := range a.Authorization {
		writePermissionLevel(w, auth)
	}
	w.WriteBytes(a.Data)
}

func readAction(r *Reader) (Action, error) {
	var (
		a   Action
		err error
	)

	if a.Account, err = r.ReadName(); err != nil {
		return a, err
	}
	if a.Name, err = r.ReadName(); err != nil {
		return a, err
	}

	count, err := r.ReadVarUint32()
	if err != nil {
		return a, err
	}
	if int(count) > r.Remaining()/16 {
		return a, ErrShortBuffer
	}
	for i := uint32(0); i < count; i++ {
		auth, err := readPermissionLevel(r)
		if err != nil {
			return a, err
		}
		a.Authorization = append(a.Authorization, auth)
	}

	a.Data, err = r.ReadBytes()
	return a, err
}

func writeActions(w *Writer, actions []Action) {
	w.WriteVarUint32(uint32(len(actions)))
	for i := range actions {
		writeAction(w, &actions[i])
	}
}

func readActions(r *Reader) ([]Action, error) {
	count, err := r.ReadVarUint32()
	if err != nil {
		return nil, err
	}

	// every action takes at least 18 bytes, which bounds the count
	// before allocating
	if int(count) > r.Remaining()/18 {
		return nil, ErrShortBuffer
	}

	actions := make([]Action, 0, count)
	for i := uint32(0); i < count; i++ {
		a, err := readAction(r)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}

	return actions, nil
}
