package prekeys

import (
	"crypto/sha512"

	"github.com/signal-golang/ed25519"
	"github.com/signal-golang/ed25519/edwards25519"
)

// clamp turns 32 random bytes into a curve25519 private scalar.
func clamp(k *[32]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

// xeddsaSign signs message with the curve25519 private key so that the
// signature verifies against the curve25519 public key.
func xeddsaSign(privateKey [32]byte, message []byte, random [64]byte) *[64]byte {
	clamp(&privateKey)

	// ed25519 public key of the curve25519 private key
	var A edwards25519.ExtendedGroupElement
	var publicKey [32]byte
	edwards25519.GeScalarMultBase(&A, &privateKey)
	A.ToBytes(&publicKey)

	diversifier := [32]byte{
		0xFE, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

	var r [64]byte
	hash := sha512.New()
	hash.Write(diversifier[:])
	hash.Write(privateKey[:])
	hash.Write(message)
	hash.Write(random[:])
	hash.Sum(r[:0])

	var rReduced [32]byte
	edwards25519.ScReduce(&rReduced, &r)
	var R edwards25519.ExtendedGroupElement
	edwards25519.GeScalarMultBase(&R, &rReduced)
	var encodedR [32]byte
	R.ToBytes(&encodedR)

	// S = r + SHA512(R || A || msg) * a  (mod L)
	var hramDigest [64]byte
	hash.Reset()
	hash.Write(encodedR[:])
	hash.Write(publicKey[:])
	hash.Write(message)
	hash.Sum(hramDigest[:0])
	var hramDigestReduced [32]byte
	edwards25519.ScReduce(&hramDigestReduced, &hramDigest)

	var s [32]byte
	edwards25519.ScMulAdd(&s, &hramDigestReduced, &privateKey, &rReduced)

	signature := new([64]byte)
	copy(signature[:], encodedR[:])
	copy(signature[32:], s[:])
	// the sign bit of A travels in the unused top bit of S
	signature[63] |= publicKey[31] & 0x80
	return signature
}

// xeddsaVerify checks a signature made by xeddsaSign against the curve25519
// public key.
func xeddsaVerify(publicKey [32]byte, message []byte, signature [64]byte) bool {
	publicKey[31] &= 0x7F

	// ed_y = (mont_x - 1) / (mont_x + 1)
	var edY, one, montX, montXMinusOne, montXPlusOne edwards25519.FieldElement
	edwards25519.FeFromBytes(&montX, &publicKey)
	edwards25519.FeOne(&one)
	edwards25519.FeSub(&montXMinusOne, &montX, &one)
	edwards25519.FeAdd(&montXPlusOne, &montX, &one)
	edwards25519.FeInvert(&montXPlusOne, &montXPlusOne)
	edwards25519.FeMul(&edY, &montXMinusOne, &montXPlusOne)

	var edPublicKey [32]byte
	edwards25519.FeToBytes(&edPublicKey, &edY)

	edPublicKey[31] |= signature[63] & 0x80
	signature[63] &= 0x7F

	return ed25519.Verify(&edPublicKey, message, &signature)
}
