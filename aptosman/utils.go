package aptosman

import (
	"crypto/rand"

	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/crypto"
	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/ed25519"
)

// GenPrivateKey 生成随机Ed25519私钥
func GenPrivateKey() (ed25519.PrivateKey, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate ed25519 key")
	}
	return privateKey, nil
}

// NewAccount 从私钥创建Aptos账户. 接受32字节种子或64字节完整私钥.
func NewAccount(privateKey ed25519.PrivateKey) (*aptos.Account, error) {
	var seed []byte
	switch len(privateKey) {
	case ed25519.SeedSize:
		seed = privateKey
	case ed25519.PrivateKeySize:
		seed = privateKey.Seed()
	default:
		return nil, errors.Wrapf(common.ErrInvalidArgument, "invalid ed25519 private key size %d", len(privateKey))
	}

	key := crypto.Ed25519PrivateKey{}
	if err := key.FromBytes(seed); err != nil {
		return nil, errors.Wrap(err, "load ed25519 private key")
	}
	account, err := aptos.NewAccountFromSigner(&key)
	if err != nil {
		return nil, errors.Wrap(err, "create account from signer")
	}
	return account, nil
}

// NewAccountFromHex 从十六进制私钥创建账户 (可带0x前缀)
func NewAccountFromHex(privateKeyHex string) (*aptos.Account, error) {
	b, err := common.HexStrToByteSlice(privateKeyHex)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}
	return NewAccount(ed25519.PrivateKey(b))
}
