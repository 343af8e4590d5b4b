package mathx

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round 按十进制精确舍入到 places 位小数（.5 远离零）
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Round2 对外输出统一保留两位小数
func Round2(v float64) float64 {
	return Round(v, 2)
}

// RoundInt 四舍五入为整数
func RoundInt(v float64) int {
	return int(Round(v, 0))
}

// Clamp 将数值限制在 [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp100 限制到 [0, 100]
func Clamp100(v float64) float64 {
	return Clamp(v, 0, 100)
}

// Sum 求和
func Sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// Mean 平均值，空切片返回 0
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// PopStdDev 总体标准差
func PopStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	sq := make([]float64, len(values))
	for i, v := range values {
		sq[i] = (v - mean) * (v - mean)
	}
	return math.Sqrt(Mean(sq))
}

// PctChange 相对上期的百分比变化；上期为 0 时按 0/100 处理
func PctChange(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return Round2((current - previous) / previous * 100)
}

// Pearson 皮尔逊相关系数，截断到 [-1, 1] 并保留两位小数；分母为 0 时返回 0
func Pearson(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n == 0 {
		return 0
	}
	xs, ys := x[:n], y[:n]
	meanX, meanY := Mean(xs), Mean(ys)

	var num, denX, denY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		num += dx * dy
		denX += dx * dx
		denY += dy * dy
	}
	den := math.Sqrt(denX * denY)
	if den == 0 {
		return 0
	}
	return Round2(Clamp(num/den, -1, 1))
}
