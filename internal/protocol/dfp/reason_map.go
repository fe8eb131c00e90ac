package dfp

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ReasonMap 设备错误码（0x40 帧参数）-> 可读描述。
// 默认表来自 FN-M16P 文档，可用 YAML 文件覆盖或补充。
type ReasonMap struct {
	Map map[int]string `yaml:"map"`
}

// DefaultReasonMap 返回厂商文档中的错误码描述表
func DefaultReasonMap() *ReasonMap {
	return &ReasonMap{
		Map: map[int]string{
			1: "module busy",
			2: "frame not fully received",
			3: "checksum mismatch",
			4: "track index out of range",
			5: "track not found",
			6: "insertion error",
			7: "sd card reading failed",
		},
	}
}

// LoadReasonMap 从 YAML 文件加载错误码描述表
func LoadReasonMap(path string) (*ReasonMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reason map: %w", err)
	}
	var m ReasonMap
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal reason map: %w", err)
	}
	if m.Map == nil {
		m.Map = make(map[int]string)
	}
	return &m, nil
}

// Describe 返回错误码描述，未知码返回占位文本
func (m *ReasonMap) Describe(code int) string {
	if m != nil && m.Map != nil {
		if d, ok := m.Map[code]; ok {
			return d
		}
	}
	return fmt.Sprintf("unknown error (%d)", code)
}

// Merge 合并另一个表的条目，重复键以 other 为准
func (m *ReasonMap) Merge(other *ReasonMap) {
	if m == nil || m.Map == nil || other == nil || other.Map == nil {
		return
	}
	for k, v := range other.Map {
		m.Map[k] = v
	}
}
