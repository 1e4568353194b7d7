package flexispot

import "strconv"

// PacketKind 上行状态帧分类
type PacketKind uint8

const (
	PacketUnknown PacketKind = iota
	PacketSleep
	PacketCurrentHeight
)

func (k PacketKind) String() string {
	switch k {
	case PacketSleep:
		return "sleep"
	case PacketCurrentHeight:
		return "current_height"
	default:
		return "unknown"
	}
}

// Packet 一个 span 的解码结果。仅当 Kind == PacketCurrentHeight 时 Height 有意义。
type Packet struct {
	Kind   PacketKind
	Height float64
}

func (p Packet) String() string {
	if p.Kind == PacketCurrentHeight {
		return p.Kind.String() + "(" + strconv.FormatFloat(p.Height, 'f', -1, 64) + ")"
	}
	return p.Kind.String()
}

// Split 按起始/结束标记任意一个切分缓冲区，丢弃空段。
// 不做成对匹配：截断或重复的标记也会产出 span，正确性交给 Decode 判断。
// 返回的 span 与 buf 共享底层数组。
func Split(buf []byte) [][]byte {
	spans := make([][]byte, 0, len(buf)/(SpanSize+2)+1)
	start := 0
	for i, b := range buf {
		if b != StartMarker && b != EndMarker {
			continue
		}
		if i > start {
			spans = append(spans, buf[start:i])
		}
		start = i + 1
	}
	if start < len(buf) {
		spans = append(spans, buf[start:])
	}
	return spans
}

// Decode 将一个 span 分类为 Unknown / Sleep / CurrentHeight。
// span[2:5] 为三位数码管字节，其余字节（类型、校验）不解析。解码失败一律归为 Unknown。
func Decode(span []byte) Packet {
	if len(span) != SpanSize {
		return Packet{Kind: PacketUnknown}
	}
	triple := span[2:5]
	if triple[0] == 0 && triple[1] == 0 && triple[2] == 0 {
		// 屏幕熄灭：控制盒休眠
		return Packet{Kind: PacketSleep}
	}

	value := 0
	for _, b := range triple {
		d, ok := decodeDigit(b)
		if !ok {
			return Packet{Kind: PacketUnknown}
		}
		value = value*10 + d
	}
	height := float64(value)
	if triple[1]&maskDot != 0 {
		height /= 10
	}
	return Packet{Kind: PacketCurrentHeight, Height: height}
}

// DecodeAll 切分并逐个解码，保持到达顺序
func DecodeAll(buf []byte) []Packet {
	spans := Split(buf)
	packets := make([]Packet, 0, len(spans))
	for _, s := range spans {
		packets = append(packets, Decode(s))
	}
	return packets
}

// LastHeight 返回序列中最后一个 CurrentHeight 的值（即最新的高度读数）
func LastHeight(packets []Packet) (float64, bool) {
	for i := len(packets) - 1; i >= 0; i-- {
		if packets[i].Kind == PacketCurrentHeight {
			return packets[i].Height, true
		}
	}
	return 0, false
}

// EncodeHeightSpan 构造一个带首尾标记的高度状态帧（type=0x12，校验字节填 0）。
// 用于模拟控制盒与测试，真实设备的校验字节不参与解码。
func EncodeHeightSpan(tenths int) []byte {
	if tenths < 0 {
		tenths = 0
	}
	d0 := (tenths / 1000) % 10
	d1 := (tenths / 100) % 10
	d2 := (tenths / 10) % 10
	dot := false
	if tenths < 1000 {
		// 小于 100cm 时显示一位小数：xx.x
		d0, d1, d2 = (tenths/100)%10, (tenths/10)%10, tenths%10
		dot = true
	}
	return []byte{
		StartMarker, 0x07, 0x12,
		EncodeDigit(d0, false), EncodeDigit(d1, dot), EncodeDigit(d2, false),
		0x00, 0x00,
		EndMarker,
	}
}
