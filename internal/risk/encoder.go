package risk

import "github.com/medipredict/internal/features"

const (
	maxHour  = 23
	dayCount = len(features.DayNames)
)

// encoder 负责把 (hour, day, slot) 转为稠密特征向量。
// 布局：[hour/23, day one-hot x7, slot one-hot xN]。
// 未见过的 slot 或越界的 day 对应的 one-hot 块保持全 0。
type encoder struct {
	slots     []string
	slotIndex map[string]int
}

func newEncoder(slots []string) *encoder {
	index := make(map[string]int, len(slots))
	for i, slot := range slots {
		index[slot] = i
	}
	return &encoder{slots: slots, slotIndex: index}
}

func (e *encoder) width() int {
	return 1 + dayCount + len(e.slots)
}

// encode 将结果写入 dst，dst 长度必须等于 width()
func (e *encoder) encode(hour, day int, slot string, dst []float64) {
	clear(dst)
	dst[0] = float64(hour) / maxHour

	if day >= 0 && day < dayCount {
		dst[1+day] = 1
	}

	if idx, ok := e.slotIndex[features.NormalizeSlot(slot)]; ok {
		dst[1+dayCount+idx] = 1
	}
}

func (e *encoder) known(slot string) bool {
	_, ok := e.slotIndex[features.NormalizeSlot(slot)]
	return ok
}
