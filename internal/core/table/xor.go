package table

import (
	"math/bits"

	"github.com/dep2p/go-dice/pkg/types"
)

// KeyBits DiceAddress 位数，也是桶的数量
const KeyBits = types.DiceAddressSize * 8

// Distance a 与 b 的 XOR 距离
func Distance(a, b types.DiceAddress) types.DiceAddress {
	var d types.DiceAddress
	for i := range d {
		d[i] = a[i] ^ b[i]
	}
	return d
}

// CompareDistance 比较 a、b 到 target 的距离：-1 表示 a 更近，1 表示 b 更近
func CompareDistance(a, b, target types.DiceAddress) int {
	for i := range target {
		da, db := a[i]^target[i], b[i]^target[i]
		if da < db {
			return -1
		}
		if da > db {
			return 1
		}
	}
	return 0
}

// CommonPrefixLen 共同前缀位数，相同身份返回 KeyBits
func CommonPrefixLen(a, b types.DiceAddress) int {
	for i := range a {
		if x := a[i] ^ b[i]; x != 0 {
			return i*8 + bits.LeadingZeros8(x)
		}
	}
	return KeyBits
}
