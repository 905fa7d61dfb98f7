package storage

import (
	"encoding/json"
	"fmt"
)

// upgrader 把 vN 的原始 JSON 转换为 vN+1。
type upgrader func([]byte) ([]byte, error)

// upgraders 是从源版本号出发的线性转换链。更早的版本链条不再随发行版携带。
var upgraders = map[int]upgrader{
	8: upgradeV8,
}

// upgrade 沿转换链把任意受支持的旧版本升级为 CurrentVersion。
func upgrade(data []byte, version int) ([]byte, error) {
	if version > CurrentVersion {
		return nil, fmt.Errorf("manifest version %d is newer than supported version %d", version, CurrentVersion)
	}
	for v := version; v < CurrentVersion; v++ {
		step, ok := upgraders[v]
		if !ok {
			return nil, fmt.Errorf("manifest version %d cannot be upgraded", version)
		}
		next, err := step(data)
		if err != nil {
			return nil, fmt.Errorf("upgrade v%d: %w", v, err)
		}
		data = next
	}
	return data, nil
}

// upgradeV8 补齐 v8 中不存在的 untracked 字段：旧注册全部视为仍在跟踪。
func upgradeV8(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if regs, ok := doc["registeredChannels"].([]any); ok {
		for _, item := range regs {
			reg, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("registered channel is %T, want object", item)
			}
			if _, ok := reg["untracked"]; !ok {
				reg["untracked"] = false
			}
		}
	}
	doc["version"] = 9
	return json.Marshal(doc)
}
