package newton

import "sync"

// task splits data in contiguous chunks, one goroutine per worker. fn gets
// the worker index, which callbacks receive as their thread index.
func task[T any](workersCount int, data []T, fn func(worker int, data T)) {
	workersCount = max(1, workersCount)
	if workersCount == 1 || len(data) < 2 {
		for _, d := range data {
			fn(0, d)
		}
		return
	}

	var wg sync.WaitGroup
	dataSize := len(data)
	chunkSize := (dataSize + workersCount - 1) / workersCount

	for workerID := 0; workerID < workersCount; workerID++ {
		start, end := workerID*chunkSize, min((workerID+1)*chunkSize, dataSize)
		if start >= end {
			break
		}
		wg.Add(1)
		go func(worker, start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(worker, data[i])
			}
		}(workerID, start, end)
	}
	wg.Wait()
}
