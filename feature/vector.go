package feature

// Vector 是通过契约校验、填充后的特征向量。构造后只读。
type Vector struct {
	contract *Contract
	values   []float64
	imputed  []string
	ignored  int
}

// Len 特征数量
func (v *Vector) Len() int { return len(v.values) }

// At 返回第 i 个特征值（契约顺序）
func (v *Vector) At(i int) float64 { return v.values[i] }

// Get 按特征名取值
func (v *Vector) Get(name string) (float64, bool) {
	i, ok := v.contract.Index(name)
	if !ok {
		return 0, false
	}
	return v.values[i], true
}

// Values 返回契约顺序的特征值副本
func (v *Vector) Values() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// Gather 按下标抽取子向量，写入 dst（容量不够时重新分配）
func (v *Vector) Gather(indices []int, dst []float64) []float64 {
	if cap(dst) < len(indices) {
		dst = make([]float64, len(indices))
	}
	dst = dst[:len(indices)]
	for i, idx := range indices {
		dst[i] = v.values[idx]
	}
	return dst
}

// Imputed 返回被兜底值填充的特征名（契约顺序）
func (v *Vector) Imputed() []string {
	if len(v.imputed) == 0 {
		return nil
	}
	out := make([]string, len(v.imputed))
	copy(out, v.imputed)
	return out
}

// Ignored 返回输入中不属于契约的 key 的数量
func (v *Vector) Ignored() int { return v.ignored }

// Contract 返回生成该向量的契约
func (v *Vector) Contract() *Contract { return v.contract }
