package flexispot

// 帧布局（控制盒 RJ45 串口，9600 8N1）：
// 下行命令 start[1]=0x9B | len[1] | opcode[3] | sum[2] | end[1]=0x9D，固定 8 字节
// 上行状态 start[1]=0x9B | len[1] | type[1] | digit[3] | sum[2] | end[1]=0x9D
// 校验值为预先计算的常量，运行时不重算。
const (
	StartMarker byte = 0x9B
	EndMarker   byte = 0x9D

	// FrameSize 下行命令帧长度
	FrameSize = 8
	// SpanSize 去掉首尾标记后的状态帧长度
	SpanSize = 7
)

// Frame 一条下行命令帧
type Frame [FrameSize]byte

// Bytes 返回可直接写入串口的切片
func (f Frame) Bytes() []byte {
	return f[:]
}

const (
	maskDigit byte = 0x7F
	maskDot   byte = 0x80
)

// glyphs 七段数码管字形，下标即数字
var glyphs = [10]byte{
	0x3F, // 0
	0x06, // 1
	0x5B, // 2
	0x4F, // 3
	0x66, // 4
	0x6D, // 5
	0x7C, // 6
	0x07, // 7
	0x7F, // 8
	0x6F, // 9
}

// decodeDigit 去掉小数点位后反查字形表
func decodeDigit(b byte) (int, bool) {
	g := b & maskDigit
	for d, v := range glyphs {
		if v == g {
			return d, true
		}
	}
	return 0, false
}

// EncodeDigit 将 0-9 编码为数码管字节，dot 表示该位带小数点。仅用于模拟器与测试。
func EncodeDigit(d int, dot bool) byte {
	if d < 0 || d > 9 {
		return 0
	}
	b := glyphs[d]
	if dot {
		b |= maskDot
	}
	return b
}
