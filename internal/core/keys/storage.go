package keys

import (
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const pemTypeSecp256k1Private = "SECP256K1 PRIVATE KEY"

// Save 将私钥写入 PEM 文件（0600，临时文件 + rename）
func Save(k *Keys, path string) error {
	data := pem.EncodeToMemory(&pem.Block{
		Type:  pemTypeSecp256k1Private,
		Bytes: k.PrivateKey(),
	})
	return atomicWriteFile(path, data, 0o600)
}

// Load 从 PEM 文件读取私钥
func Load(path string) (*Keys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemTypeSecp256k1Private {
		return nil, ErrInvalidPEM
	}
	return FromPrivateKey(block.Bytes)
}

// LoadOrGenerate 读取密钥文件，不存在时生成并保存
//
// path 为空时只生成临时密钥，不落盘。
func LoadOrGenerate(path string) (*Keys, error) {
	if path == "" {
		return Generate()
	}
	k, err := Load(path)
	if err == nil {
		return k, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, fmt.Errorf("keys: load %s: %w", path, err)
	}

	k, err = Generate()
	if err != nil {
		return nil, err
	}
	if err := Save(k, path); err != nil {
		return nil, fmt.Errorf("keys: save %s: %w", path, err)
	}
	log.Info("generated new identity", "address", k.DiceAddress().String(), "path", path)
	return k, nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
