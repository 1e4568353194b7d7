package controller

import (
	"fmt"

	"github.com/taoyao-code/flexispot-bridge/internal/protocol/flexispot"
)

// 主题名与 HomeKit 侧配置保持一致，不能修改
const (
	TopicOnline        = "online"
	TopicCurrentHeight = "desk/current-height"
	TopicTargetHeight  = "desk/target-height"
	TopicHeightState   = "desk/height-state"

	PayloadTrue    = "true"
	PayloadFalse   = "false"
	HeightStopped  = "STOPPED"
	presetTopicFmt = "desk-switch/preset%d/%s"
)

// QoS
const (
	AtMostOnce  byte = 0
	AtLeastOnce byte = 1
)

// Topics 加上前缀后的全部主题
type Topics struct {
	Online        string
	CurrentHeight string
	TargetHeight  string
	HeightState   string
	presetSet     map[flexispot.Preset]string
	presetGet     map[flexispot.Preset]string
}

// NewTopics 构建主题表，prefix 原样拼接在前（如 "office/"）
func NewTopics(prefix string) Topics {
	t := Topics{
		Online:        prefix + TopicOnline,
		CurrentHeight: prefix + TopicCurrentHeight,
		TargetHeight:  prefix + TopicTargetHeight,
		HeightState:   prefix + TopicHeightState,
		presetSet:     make(map[flexispot.Preset]string, len(flexispot.Presets)),
		presetGet:     make(map[flexispot.Preset]string, len(flexispot.Presets)),
	}
	for _, p := range flexispot.Presets {
		t.presetSet[p] = prefix + presetTopic(p, "set")
		t.presetGet[p] = prefix + presetTopic(p, "get")
	}
	return t
}

// PresetSet 记忆位调用主题 desk-switch/presetN/set
func (t Topics) PresetSet(p flexispot.Preset) string { return t.presetSet[p] }

// PresetGet 记忆位开关状态主题 desk-switch/presetN/get
func (t Topics) PresetGet(p flexispot.Preset) string { return t.presetGet[p] }

// MatchPresetSet 反查 set 主题对应的记忆位
func (t Topics) MatchPresetSet(topic string) (flexispot.Preset, bool) {
	for p, s := range t.presetSet {
		if s == topic {
			return p, true
		}
	}
	return 0, false
}

func presetTopic(p flexispot.Preset, kind string) string {
	return fmt.Sprintf(presetTopicFmt, uint8(p), kind)
}
