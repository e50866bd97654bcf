package domain

import "strings"

// Identity partitions carts and checkouts. It is the connected wallet address,
// or Anonymous when no wallet is connected.
type Identity string

// Anonymous is the cart bucket used while no wallet is connected.
const Anonymous Identity = "anonymous"

// NormalizeIdentity maps a raw wallet address to an Identity. Hex addresses are
// lowercased so checksummed and plain spellings share one cart.
func NormalizeIdentity(address string) Identity {
	address = strings.TrimSpace(address)
	if address == "" || strings.EqualFold(address, string(Anonymous)) {
		return Anonymous
	}
	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		return Identity("0x" + strings.ToLower(address[2:]))
	}
	return Identity(address)
}

// Connected reports whether the identity belongs to a connected wallet.
func (i Identity) Connected() bool {
	return i != "" && i != Anonymous
}

func (i Identity) String() string { return string(i) }
