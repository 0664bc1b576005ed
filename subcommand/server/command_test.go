package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/inbound-policy-controller/internal/core"
)

func TestParseClusterNetworksDefaultsWhenEmpty(t *testing.T) {
	nets, err := parseClusterNetworks(nil)
	require.NoError(t, err)
	require.Len(t, nets, 1)
	assert.Equal(t, "10.42.0.0/16", nets[0].Net.String())
}

func TestParseClusterNetworksRejectsInvalidCIDR(t *testing.T) {
	_, err := parseClusterNetworks([]string{"not-a-cidr"})
	assert.Error(t, err)
}

func TestParseClusterNetworksParsesEachEntry(t *testing.T) {
	nets, err := parseClusterNetworks([]string{"10.0.0.0/8", "192.168.0.0/16"})
	require.NoError(t, err)
	require.Len(t, nets, 2)
	assert.Equal(t, "10.0.0.0/8", nets[0].Net.String())
	assert.Equal(t, "192.168.0.0/16", nets[1].Net.String())
}

func TestCommandFlagDefaults(t *testing.T) {
	c := &Command{}
	c.init()
	require.NoError(t, c.flagSet.Parse(nil))

	assert.Equal(t, 8910, c.flagGRPCPort)
	assert.Equal(t, "cluster.local", c.flagIdentityDomain)
	assert.Equal(t, string(core.AllAuthenticated), c.flagDefaultAllow)
}

func TestCommandHelpAndSynopsisAreNonEmpty(t *testing.T) {
	c := &Command{}
	assert.NotEmpty(t, c.Synopsis())
	assert.NotEmpty(t, c.Help())
}
