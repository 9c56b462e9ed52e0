package chains

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfacilitator/go-facilitator/types"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry([]ChainConfig{
		{Network: types.NetworkBase, RPCURL: "http://localhost:8545"},
		{Network: types.NetworkBaseSepolia, RPCURL: "http://localhost:8546"},
		{Network: types.NetworkSolanaDevnet, RPCURL: "http://localhost:8899"},
	})
	require.NoError(t, err)
	t.Cleanup(registry.Close)
	return registry
}

func TestRegistryResolve(t *testing.T) {
	registry := newTestRegistry(t)

	handle, err := registry.Resolve(types.NetworkBase)
	require.NoError(t, err)
	assert.Equal(t, types.FamilyEVM, handle.Family)
	assert.Equal(t, big.NewInt(8453), handle.ChainID)
	assert.NotNil(t, handle.EVM())
	assert.Nil(t, handle.Ledger())

	handle, err = registry.Resolve(types.NetworkSolanaDevnet)
	require.NoError(t, err)
	assert.Equal(t, types.FamilyLedger, handle.Family)
	assert.Nil(t, handle.ChainID)
	assert.Nil(t, handle.EVM())
	assert.NotNil(t, handle.Ledger())
}

func TestRegistryResolveUnconfiguredNetwork(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := registry.Resolve(types.NetworkEthereum)
	require.Error(t, err)

	var facErr *types.FacilitatorError
	require.ErrorAs(t, err, &facErr)
	assert.Equal(t, types.ReasonUnsupportedNetwork, facErr.Code)
}

func TestRegistryRejectsUnknownNetwork(t *testing.T) {
	_, err := NewRegistry([]ChainConfig{{Network: "dogecoin", RPCURL: "http://localhost:1234"}})
	assert.Error(t, err)
}

func TestRegistryRejectsMissingRPCURL(t *testing.T) {
	_, err := NewRegistry([]ChainConfig{{Network: types.NetworkBase}})
	assert.Error(t, err)
}

func TestRegistryNetworksAndFamily(t *testing.T) {
	registry := newTestRegistry(t)

	assert.Len(t, registry.Networks(), 3)

	family, err := registry.Family(types.NetworkBaseSepolia)
	require.NoError(t, err)
	assert.Equal(t, types.FamilyEVM, family)

	_, err = registry.Family(types.NetworkSepolia)
	assert.Error(t, err)
}
