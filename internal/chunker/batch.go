package chunker

import "iter"

// Batches 将序列按最多 size 个元素分组，size <= 0 时按 1 处理。
func Batches[T any](seq iter.Seq[T], size int) iter.Seq[[]T] {
	if size <= 0 {
		size = 1
	}
	return func(yield func([]T) bool) {
		batch := make([]T, 0, min(size, 64))
		for v := range seq {
			batch = append(batch, v)
			if len(batch) == size {
				if !yield(batch) {
					return
				}
				batch = make([]T, 0, min(size, 64))
			}
		}
		if len(batch) > 0 {
			yield(batch)
		}
	}
}
