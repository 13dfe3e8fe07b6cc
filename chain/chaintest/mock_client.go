package chaintest

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/oasislabs/signing-gateway/chain"
	"github.com/oasislabs/signing-gateway/codec"
)

// ChainID is the chain the default mocked info reports
var ChainID = codec.MustChainID("aca376f206b8fc25a6ed44dbdc66547c36c6c33e3a119ffbeaef943642f0e906")

// Info is the head state returned by default
var Info = &chain.Info{
	ChainID:                  ChainID,
	HeadBlockNum:             1000,
	HeadBlockTime:            time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	LastIrreversibleBlockNum: 990,
	LastIrreversibleBlockID: chain.BlockID{
		0x00, 0x00, 0x03, 0xde, 0x01, 0x02, 0x03, 0x04,
		0xaa, 0xbb, 0xcc, 0xdd,
	},
}

type MockMethod struct {
	Arguments []interface{}
	Return    []interface{}
	Run       func(mock.Arguments)
}

type MockMethods map[string]MockMethod

var DefaultMockMethods = map[string]MockMethod{
	"GetInfo": {
		Arguments: []interface{}{mock.Anything},
		Return:    []interface{}{Info, nil},
	},
	"PushTransaction": {
		Arguments: []interface{}{mock.Anything, mock.Anything},
		Return: []interface{}{&chain.PushResult{
			TransactionID: "0000000000000000000000000000000000000000000000000000000000000000",
			BlockNum:      1001,
		}, nil},
	},
}

func OverwriteDefaults(overwrite MockMethods) MockMethods {
	methods := make(MockMethods)

	for key, value := range DefaultMockMethods {
		methods[key] = value
	}
	for key, value := range overwrite {
		methods[key] = value
	}

	return methods
}

func ImplementMockWithOverwrite(client *MockClient, overwrite MockMethods) {
	ImplementMockWithMethods(client, OverwriteDefaults(overwrite))
}

func ImplementMockWithMethods(client *MockClient, methods MockMethods) {
	for key, method := range methods {
		call := client.On(key, method.Arguments...)
		if len(method.Return) > 0 {
			call = call.Return(method.Return...)
		}
		if method.Run != nil {
			call.Run(method.Run)
		}
	}
}

func ImplementMock(client *MockClient) {
	ImplementMockWithMethods(client, DefaultMockMethods)
}

// ImplementAbi mocks GetRawAbi for account to return abi
func ImplementAbi(client *MockClient, account codec.Name, abi []byte) {
	client.On("GetRawAbi", mock.Anything, account).Return(abi, nil)
}

// ImplementMissingAbi mocks GetRawAbi for account to fail with err
func ImplementMissingAbi(client *MockClient, account codec.Name, err error) {
	client.On("GetRawAbi", mock.Anything, account).Return(nil, err)
}

type MockClient struct {
	mock.Mock
}

func (m *MockClient) GetRawAbi(ctx context.Context, account codec.Name) ([]byte, error) {
	args := m.Called(ctx, account)
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), nil
}

func (m *MockClient) GetInfo(ctx context.Context) (*chain.Info, error) {
	args := m.Called(ctx)
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*chain.Info), nil
}

func (m *MockClient) PushTransaction(ctx context.Context, tx *chain.PackedTransaction) (*chain.PushResult, error) {
	args := m.Called(ctx, tx)
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*chain.PushResult), nil
}
