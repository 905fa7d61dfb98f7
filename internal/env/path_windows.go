//go:build windows

package env

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

// registryPathStore 读写 HKCU\Environment 下的 Path。
type registryPathStore struct{}

// DefaultPathStore 返回基于注册表的用户 PATH 存储。
func DefaultPathStore() PathStore {
	return registryPathStore{}
}

func (registryPathStore) Get() (string, error) {
	key, err := registry.OpenKey(registry.CURRENT_USER, "Environment", registry.QUERY_VALUE)
	if err != nil {
		return "", fmt.Errorf("open HKCU\\Environment: %w", err)
	}
	defer key.Close()

	value, _, err := key.GetStringValue("Path")
	if errors.Is(err, registry.ErrNotExist) {
		return "", nil
	}
	return value, err
}

func (registryPathStore) Set(value string) error {
	key, err := registry.OpenKey(registry.CURRENT_USER, "Environment", registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open HKCU\\Environment: %w", err)
	}
	defer key.Close()
	return key.SetExpandStringValue("Path", value)
}
