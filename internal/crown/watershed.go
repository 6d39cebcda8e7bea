package crown

import (
	"container/heap"
	"math"

	"github.com/banshee-data/treecrown/internal/raster"
)

var (
	offsets4 = [][2]int{{-1, 0}, {0, -1}, {0, 1}, {1, 0}}
	offsets8 = [][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
)

func neighbourOffsets(conn int) [][2]int {
	if conn == 4 {
		return offsets4
	}
	return offsets8
}

type floodCell struct {
	priority float64
	age      uint64
	idx      int
}

// floodQueue pops the lowest priority first; equal priorities pop in
// insertion order.
type floodQueue []floodCell

func (q floodQueue) Len() int { return len(q) }
func (q floodQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].age < q[j].age
}
func (q floodQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *floodQueue) Push(x any)   { *q = append(*q, x.(floodCell)) }
func (q *floodQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Watershed floods marker labels across the mask, highest cells first.
// A cell takes the label of the neighbour that reached it first; ties in
// height resolve by arrival order, and seeds enter in row-major order.
// Mask cells that no flood reaches stay 0. Markers outside the mask are
// ignored.
func Watershed(heights *raster.Grid, markers *raster.LabelGrid, mask *raster.Mask, connectivity int) (*raster.LabelGrid, error) {
	if err := checkConnectivity(connectivity); err != nil {
		return nil, err
	}
	if err := raster.CheckShape(heights, markers); err != nil {
		return nil, err
	}
	if err := raster.CheckShape(heights, mask); err != nil {
		return nil, err
	}

	rows, cols := heights.Rows, heights.Cols
	out := raster.NewLabelGrid(rows, cols)
	q := &floodQueue{}
	var age uint64

	priority := func(idx int) float64 {
		h := heights.Data[idx]
		if math.IsNaN(h) {
			return math.Inf(1)
		}
		return -h
	}

	for idx, id := range markers.Data {
		if id > 0 && mask.Data[idx] {
			out.Data[idx] = id
			*q = append(*q, floodCell{priority: priority(idx), age: age, idx: idx})
			age++
		}
	}
	heap.Init(q)

	offsets := neighbourOffsets(connectivity)
	for q.Len() > 0 {
		cell := heap.Pop(q).(floodCell)
		r, c := cell.idx/cols, cell.idx%cols
		for _, off := range offsets {
			nr, nc := r+off[0], c+off[1]
			if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
				continue
			}
			n := nr*cols + nc
			if !mask.Data[n] || out.Data[n] != 0 {
				continue
			}
			out.Data[n] = out.Data[cell.idx]
			heap.Push(q, floodCell{priority: priority(n), age: age, idx: n})
			age++
		}
	}
	return out, nil
}
