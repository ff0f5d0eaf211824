package repo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitMultiValue(t *testing.T) {
	require.Equal(t, []string{"UPS", "FedEx"}, splitMultiValue("UPS;FedEx"))
	require.Equal(t, []string{"UPS"}, splitMultiValue(" UPS ; ; "))
	require.Empty(t, splitMultiValue(""))
	require.Empty(t, splitMultiValue(";;"))
}

func TestParseNullDecimal(t *testing.T) {
	require.Nil(t, parseNullDecimal(nil))

	bad := "not-a-number"
	require.Nil(t, parseNullDecimal(&bad))

	good := " 12.50 "
	d := parseNullDecimal(&good)
	require.NotNil(t, d)
	require.Equal(t, "12.5", d.String())
}
