package flexispot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 抓包数据：前后各有半帧，中间混有其它类型的状态帧
var capturedStream = []byte{
	0xC3, 0x9D, // 半帧
	0x9B, 0x04, 0x11, 0x7C, 0xC3, 0x9D,
	0x9B, 0x04, 0x11, 0x7C, 0xC3, 0x9D,
	0x9B, 0x04, 0x11, 0x7C, 0xC3, 0x9D,
	0x9B, 0x07, 0x12, 0x07, 0xED, 0x6F, 0x05, 0x28, 0x9D, // 75.9
	0x9B, 0x04, 0x11, 0x7C, 0xC3, 0x9D,
	0x9B, 0x07, 0x12, 0x00, 0x00, 0x00, 0xB8, 0x94, 0x9D, // 休眠
	0x9B, // 半帧
}

func TestDecodeAll_CapturedStream(t *testing.T) {
	got := DecodeAll(capturedStream)
	want := []Packet{
		{Kind: PacketUnknown},
		{Kind: PacketUnknown},
		{Kind: PacketUnknown},
		{Kind: PacketUnknown},
		{Kind: PacketCurrentHeight, Height: 75.9},
		{Kind: PacketUnknown},
		{Kind: PacketSleep},
	}
	assert.Equal(t, want, got)

	h, ok := LastHeight(got)
	require.True(t, ok)
	assert.Equal(t, 75.9, h)
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want [][]byte
	}{
		{"空缓冲", nil, [][]byte{}},
		{"只有标记", []byte{0x9B, 0x9D, 0x9B}, [][]byte{}},
		{"完整帧", []byte{0x9B, 0x01, 0x02, 0x9D}, [][]byte{{0x01, 0x02}}},
		{"重复标记", []byte{0x9B, 0x9B, 0x01, 0x9D, 0x9D, 0x02}, [][]byte{{0x01}, {0x02}}},
		{"无标记", []byte{0x01, 0x02, 0x03}, [][]byte{{0x01, 0x02, 0x03}}},
		{"结束标记在前", []byte{0x01, 0x9D, 0x9B, 0x02}, [][]byte{{0x01}, {0x02}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.in))
		})
	}
}

func TestDecode_HeightFormula(t *testing.T) {
	for d0 := 0; d0 <= 9; d0++ {
		for d1 := 0; d1 <= 9; d1++ {
			for d2 := 0; d2 <= 9; d2++ {
				for _, dot := range []bool{false, true} {
					span := []byte{0x07, 0x12, EncodeDigit(d0, false), EncodeDigit(d1, dot), EncodeDigit(d2, false), 0xAA, 0xBB}
					want := float64(100*d0 + 10*d1 + d2)
					if dot {
						want /= 10
					}
					got := Decode(span)
					require.Equal(t, PacketCurrentHeight, got.Kind, "digits %d%d%d dot=%v", d0, d1, d2, dot)
					require.Equal(t, want, got.Height, "digits %d%d%d dot=%v", d0, d1, d2, dot)
				}
			}
		}
	}
}

func TestDecode_Classification(t *testing.T) {
	tests := []struct {
		name string
		span []byte
		want PacketKind
	}{
		{"长度不足", []byte{0x07, 0x12, 0x06, 0x06, 0x06, 0x00}, PacketUnknown},
		{"长度超出", []byte{0x07, 0x12, 0x06, 0x06, 0x06, 0x00, 0x00, 0x00}, PacketUnknown},
		{"空", []byte{}, PacketUnknown},
		{"休眠", []byte{0x07, 0x12, 0x00, 0x00, 0x00, 0xB8, 0x94}, PacketSleep},
		{"休眠-其它字节任意", []byte{0xFF, 0xEE, 0x00, 0x00, 0x00, 0x01, 0x02}, PacketSleep},
		{"非法字形-首位", []byte{0x07, 0x12, 0x01, 0x06, 0x06, 0x00, 0x00}, PacketUnknown},
		{"非法字形-末位", []byte{0x07, 0x12, 0x06, 0x06, 0x7E, 0x00, 0x00}, PacketUnknown},
		{"单个零字节不是休眠", []byte{0x07, 0x12, 0x00, 0x06, 0x06, 0x00, 0x00}, PacketUnknown},
		{"带小数点的零仍为非法", []byte{0x07, 0x12, 0x06, 0x80, 0x06, 0x00, 0x00}, PacketUnknown},
		{"合法高度", []byte{0x07, 0x12, 0x06, 0x5B, 0x3F, 0x00, 0x00}, PacketCurrentHeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.span).Kind)
		})
	}
}

func TestDecode_DotOnlyOnMiddleDigit(t *testing.T) {
	// 首位、末位的小数点位不影响数值
	span := []byte{0x07, 0x12, EncodeDigit(1, true), EncodeDigit(2, false), EncodeDigit(0, true), 0x00, 0x00}
	got := Decode(span)
	require.Equal(t, PacketCurrentHeight, got.Kind)
	assert.Equal(t, 120.0, got.Height)
}

func TestLastHeight(t *testing.T) {
	t.Run("取最后一个高度", func(t *testing.T) {
		packets := []Packet{
			{Kind: PacketCurrentHeight, Height: 70},
			{Kind: PacketUnknown},
			{Kind: PacketCurrentHeight, Height: 71.5},
			{Kind: PacketSleep},
			{Kind: PacketUnknown},
		}
		h, ok := LastHeight(packets)
		require.True(t, ok)
		assert.Equal(t, 71.5, h)
	})

	t.Run("只有未知与休眠", func(t *testing.T) {
		_, ok := LastHeight([]Packet{{Kind: PacketUnknown}, {Kind: PacketSleep}})
		assert.False(t, ok)
	})

	t.Run("空序列", func(t *testing.T) {
		_, ok := LastHeight(nil)
		assert.False(t, ok)
	})
}

func TestEncodeHeightSpan_RoundTrip(t *testing.T) {
	for _, tenths := range []int{620, 759, 999, 1000, 1205, 1280} {
		packets := DecodeAll(EncodeHeightSpan(tenths))
		require.Len(t, packets, 1)
		require.Equal(t, PacketCurrentHeight, packets[0].Kind)
		want := float64(tenths) / 10
		if tenths >= 1000 {
			want = float64(tenths / 10)
		}
		assert.Equal(t, want, packets[0].Height, "tenths=%d", tenths)
	}
}
