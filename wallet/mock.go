package wallet

import (
	"math/big"

	"github.com/manuelog-udc/tfm-munics/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockWallet is a testify mock implementing interfaces.WalletAdapter and
// interfaces.Treasury.
type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) Address() interfaces.Address {
	args := m.Called()
	return args.Get(0).(interfaces.Address)
}

func (m *MockWallet) IsOwner(addr interfaces.Address) (bool, error) {
	args := m.Called(addr)
	return args.Bool(0), args.Error(1)
}

func (m *MockWallet) OwnerThreshold() (uint64, error) {
	args := m.Called()
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockWallet) MutationNonce() (uint64, error) {
	args := m.Called()
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockWallet) AddOwner(addr interfaces.Address) error {
	args := m.Called(addr)
	return args.Error(0)
}

func (m *MockWallet) Transfer(to interfaces.Address, amount *big.Int) error {
	args := m.Called(to, amount)
	return args.Error(0)
}
