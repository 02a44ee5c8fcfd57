package keylet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func addr(b byte) Address {
	var a Address
	for i := range a {
		a[i] = b
	}
	return a
}

func TestFindOfferRoundTripsThroughCreate(t *testing.T) {
	owner := addr(0x11)
	offerAsset := addr(0x22)
	acceptAsset := addr(0x33)

	derived, bump := FindOffer(owner, offerAsset, acceptAsset, 7)
	require.False(t, derived.IsZero())
	require.Equal(t, derived, CreateOffer(owner, offerAsset, acceptAsset, 7, bump))
}

func TestDerivationIsDeterministic(t *testing.T) {
	a1, b1 := FindOffer(addr(1), addr(2), addr(3), 0)
	a2, b2 := FindOffer(addr(1), addr(2), addr(3), 0)
	require.Equal(t, a1, a2)
	require.Equal(t, b1, b2)
}

func TestDistinctInputsGiveDistinctAddresses(t *testing.T) {
	base, _ := FindOffer(addr(1), addr(2), addr(3), 0)

	perturbed := []Address{}
	a, _ := FindOffer(addr(9), addr(2), addr(3), 0)
	perturbed = append(perturbed, a)
	a, _ = FindOffer(addr(1), addr(9), addr(3), 0)
	perturbed = append(perturbed, a)
	a, _ = FindOffer(addr(1), addr(2), addr(9), 0)
	perturbed = append(perturbed, a)
	a, _ = FindOffer(addr(1), addr(2), addr(3), 1)
	perturbed = append(perturbed, a)

	for _, p := range perturbed {
		require.NotEqual(t, base, p)
	}
}

func TestWrongBumpDoesNotRederive(t *testing.T) {
	derived, bump := FindOffer(addr(1), addr(2), addr(3), 42)
	other := CreateOffer(addr(1), addr(2), addr(3), 42, bump-1)
	require.NotEqual(t, derived, other)
}

func TestHoldingBindsToOffer(t *testing.T) {
	offerA, _ := FindOffer(addr(1), addr(2), addr(3), 0)
	offerB, _ := FindOffer(addr(1), addr(2), addr(3), 1)

	require.Equal(t, Holding(offerA, addr(2)), Holding(offerA, addr(2)))
	require.NotEqual(t, Holding(offerA, addr(2)), Holding(offerB, addr(2)))
	require.NotEqual(t, Holding(offerA, addr(2)), offerA)
}

func TestAddressHexRoundTrip(t *testing.T) {
	a := addr(0xAB)
	parsed, err := AddressFromHex(a.String())
	require.NoError(t, err)
	require.Equal(t, a, parsed)

	_, err = AddressFromHex("zz")
	require.Error(t, err)
	_, err = AddressFromHex("abcd")
	require.Error(t, err)
}

// Addresses travel as hex strings on every wire surface, including event
// payloads marshaled straight from structs.
func TestAddressJSONEncoding(t *testing.T) {
	a := addr(0xAB)

	data, err := json.Marshal(struct {
		Offer Address `json:"offer"`
	}{Offer: a})
	require.NoError(t, err)
	require.JSONEq(t, `{"offer":"`+a.String()+`"}`, string(data))

	var decoded Address
	require.NoError(t, json.Unmarshal([]byte(`"`+a.String()+`"`), &decoded))
	require.Equal(t, a, decoded)

	require.Error(t, json.Unmarshal([]byte(`"abcd"`), &decoded))
	require.Error(t, json.Unmarshal([]byte(`42`), &decoded))
}
