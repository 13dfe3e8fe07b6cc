package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderPrimitives(t *testing.T) {
	var w Writer
	w.WriteUint8(7)
	w.WriteBool(true)
	w.WriteUint16(0x0102)
	w.WriteUint32(0x01020304)
	w.WriteUint64(0x0102030405060708)
	w.WriteVarUint32(300)
	w.WriteString("memo")
	w.WriteName(MustName("alice"))

	assert.Equal(t, []byte{0x02, 0x01}, w.Bytes()[2:4])
	assert.Equal(t, []byte{0xac, 0x02}, w.Bytes()[16:18])

	r := NewReader(w.Bytes())
	u8, err := r.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), u8)

	b, err := r.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)

	u16, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), u16)

	u32, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), u32)

	u64, err := r.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), u64)

	v, err := r.ReadVarUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(300), v)

	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "memo", s)

	n, err := r.ReadName()
	require.NoError(t, err)
	assert.Equal(t, "alice", n.String())

	assert.Equal(t, 0, r.Remaining())
	_, err = r.ReadUint8()
	assert.Equal(t, ErrShortBuffer, err)
}

func TestReaderRejectsOversizedLength(t *testing.T) {
	var w Writer
	w.WriteVarUint32(100)
	w.WriteRaw([]byte("short"))

	_, err := NewReader(w.Bytes()).ReadBytes()
	assert.Equal(t, ErrShortBuffer, err)
}

func TestReaderInvalidBool(t *testing.T) {
	_, err := NewReader([]byte{2}).ReadBool()
	assert.Error(t, err)
}

func TestTransactionPackRoundTrip(t *testing.T) {
	tx := &Transaction{
		TransactionHeader: TransactionHeader{
			Expiration:     1600000000,
			RefBlockNum:    1234,
			RefBlockPrefix: 987654321,
		},
		ContextFreeActions: []Action{},
		Actions: []Action{{
			Account:       MustName("eosio.token"),
			Name:          MustName("transfer"),
			Authorization: []PermissionLevel{{Actor: MustName("alice"), Permission: MustName("active")}},
			Data:          []byte{1, 2, 3},
		}},
	}

	packed := tx.Pack()
	// header is 4 + 2 + 4 + 1 + 1 + 1 bytes
	assert.Equal(t, byte(0), packed[13])

	unpacked, err := UnpackTransaction(packed)
	require.NoError(t, err)
	assert.Equal(t, tx.TransactionHeader, unpacked.TransactionHeader)
	assert.Equal(t, tx.Actions, unpacked.Actions)

	_, err = UnpackTransaction(append(packed, 0))
	assert.Error(t, err)
}
